package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/events"
	"github.com/kang022878/WheelCity-back-2025/internal/testutil"
)

var (
	rampNoCurb = core.Label{Ramp: true, Curb: false}
	curbNoRamp = core.Label{Ramp: false, Curb: true}
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *recordingNotifier) Publish(e events.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.EventType()
	}
	return out
}

type fixture struct {
	store    *testutil.MemoryStore
	fetcher  *testutil.FakeFetcher
	gateway  *testutil.FakeGateway
	notifier *recordingNotifier
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    testutil.NewMemoryStore(),
		fetcher:  testutil.NewFakeFetcher(),
		gateway:  testutil.NewFakeGateway(),
		notifier: &recordingNotifier{},
	}
	f.engine = NewEngine(Deps{
		Venues:      f.store,
		Reports:     f.store,
		Fetcher:     f.fetcher,
		Gateway:     f.gateway,
		Notifier:    f.notifier,
		CallTimeout: time.Second,
	})
	f.engine.Orchestrator.retry = NewRetryPolicy(WithBaseDelay(time.Millisecond))
	return f
}

// evidence registers ref with the fetcher and returns it.
func (f *fixture) evidence(ref string) core.EvidenceRef {
	r := core.EvidenceRef(ref)
	f.fetcher.WithImage(r, []byte("image:"+ref))
	return r
}

func (f *fixture) submit(t *testing.T, venueID core.VenueID, asserted core.Label, refs ...core.EvidenceRef) core.ReportID {
	t.Helper()
	id, err := f.engine.Intake.Submit(context.Background(), SubmitRequest{
		VenueID:      venueID,
		AuthorID:     "author-1",
		Asserted:     asserted,
		EvidenceRefs: refs,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return id
}

func (f *fixture) venue(t *testing.T, id core.VenueID) *core.Venue {
	t.Helper()
	v, err := f.store.GetVenue(context.Background(), id)
	if err != nil {
		t.Fatalf("GetVenue() error = %v", err)
	}
	return v
}

func (f *fixture) createVenue(t *testing.T, id core.VenueID) {
	t.Helper()
	if err := f.store.CreateVenue(context.Background(), testutil.NewTestVenue(id)); err != nil {
		t.Fatalf("CreateVenue() error = %v", err)
	}
}

var errBoom = errors.New("boom")
