package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

// MockCall records a call to a fake.
type MockCall struct {
	Method    string
	Ref       core.EvidenceRef
	Timestamp time.Time
}

type callLog struct {
	mu    sync.Mutex
	calls []MockCall
}

func (c *callLog) record(method string, ref core.EvidenceRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, MockCall{Method: method, Ref: ref, Timestamp: time.Now()})
}

// Calls returns recorded calls in order.
func (c *callLog) Calls() []MockCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]MockCall{}, c.calls...)
}

// Refs returns the references passed to recorded calls in order.
func (c *callLog) Refs() []core.EvidenceRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	refs := make([]core.EvidenceRef, len(c.calls))
	for i, call := range c.calls {
		refs[i] = call.Ref
	}
	return refs
}

// CallCount returns the number of recorded calls.
func (c *callLog) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// FakeFetcher implements core.EvidenceFetcher with scripted responses.
// Unknown references fail as unavailable.
type FakeFetcher struct {
	callLog
	mu        sync.Mutex
	data      map[core.EvidenceRef][]byte
	errs      map[core.EvidenceRef]error
	fetchFunc func(context.Context, core.EvidenceRef) ([]byte, error)
}

var _ core.EvidenceFetcher = (*FakeFetcher)(nil)

// NewFakeFetcher creates a fetcher with no evidence.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		data: make(map[core.EvidenceRef][]byte),
		errs: make(map[core.EvidenceRef]error),
	}
}

// WithImage makes ref resolve to data.
func (f *FakeFetcher) WithImage(ref core.EvidenceRef, data []byte) *FakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[ref] = data
	return f
}

// WithError makes fetching ref fail with err.
func (f *FakeFetcher) WithError(ref core.EvidenceRef, err error) *FakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[ref] = err
	return f
}

// WithFetchFunc overrides all scripted behavior.
func (f *FakeFetcher) WithFetchFunc(fn func(context.Context, core.EvidenceRef) ([]byte, error)) *FakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchFunc = fn
	return f
}

// Fetch implements core.EvidenceFetcher.
func (f *FakeFetcher) Fetch(ctx context.Context, ref core.EvidenceRef) ([]byte, error) {
	f.record("Fetch", ref)

	f.mu.Lock()
	fn := f.fetchFunc
	data, ok := f.data[ref]
	err := f.errs[ref]
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, ref)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrEvidenceUnavailable(ref, "no such object")
	}
	return data, nil
}

// FakeGateway implements core.InferenceGateway with scripted labels per
// reference. Unscripted references fail as undetermined.
type FakeGateway struct {
	callLog
	mu        sync.Mutex
	labels    map[core.EvidenceRef]core.Label
	errs      map[core.EvidenceRef]error
	inferFunc func(context.Context, core.EvidenceRef, []byte) (core.Label, error)
}

var _ core.InferenceGateway = (*FakeGateway)(nil)

// NewFakeGateway creates a gateway with no scripted answers.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		labels: make(map[core.EvidenceRef]core.Label),
		errs:   make(map[core.EvidenceRef]error),
	}
}

// WithLabel makes inference on ref return label.
func (g *FakeGateway) WithLabel(ref core.EvidenceRef, label core.Label) *FakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.labels[ref] = label
	return g
}

// WithError makes inference on ref fail with err.
func (g *FakeGateway) WithError(ref core.EvidenceRef, err error) *FakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[ref] = err
	return g
}

// WithInferFunc overrides all scripted behavior.
func (g *FakeGateway) WithInferFunc(fn func(context.Context, core.EvidenceRef, []byte) (core.Label, error)) *FakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inferFunc = fn
	return g
}

// Name implements core.InferenceGateway.
func (g *FakeGateway) Name() string { return "fake" }

// Infer implements core.InferenceGateway.
func (g *FakeGateway) Infer(ctx context.Context, ref core.EvidenceRef, image []byte) (core.Label, error) {
	g.record("Infer", ref)

	g.mu.Lock()
	fn := g.inferFunc
	label, ok := g.labels[ref]
	err := g.errs[ref]
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx, ref, image)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return core.Label{}, ctxErr
	}
	if err != nil {
		return core.Label{}, err
	}
	if !ok {
		return core.Label{}, core.ErrInference(core.CodeUndetermined, "no scripted label")
	}
	return label, nil
}
