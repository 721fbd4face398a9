// Package reconcile keeps venue labels in line with what users report.
//
// Reports are accepted by Intake, which stores each report's disagreement
// with the label in force. When the three most recent reports of a venue all
// disagree, the Tracker hands the window to the Orchestrator, which re-runs
// inference over the reports' evidence and commits either a new label or a
// needs-evidence flag.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/events"
	"github.com/kang022878/WheelCity-back-2025/internal/logging"
)

// Outcome is the result of one orchestration run.
type Outcome string

const (
	// OutcomeLabeled: a label was committed.
	OutcomeLabeled Outcome = "labeled"
	// OutcomeNeedsEvidence: no evidence produced a label; the flag was set.
	OutcomeNeedsEvidence Outcome = "needs_evidence"
	// OutcomeUnchanged: initial labelling failed and the venue stays unlabeled.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeSkipped: the venue moved on before the run took its lock.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeAbandoned: the commit kept conflicting or the run was cancelled.
	OutcomeAbandoned Outcome = "abandoned"
)

// Label sources reported in label:updated events.
const (
	SourceInitial      = "initial"
	SourceReevaluation = "reevaluation"
	SourceManual       = "manual"
)

// Result describes what an orchestration run did.
type Result struct {
	Outcome Outcome
	Label   *core.VenueLabel
	// Tried lists the evidence references attempted, in order.
	Tried []core.EvidenceRef
}

// Notifier receives state-change events.
type Notifier interface {
	Publish(event events.Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(events.Event) {}

// errLabelMoved aborts a commit retry when the label changed under us.
var errLabelMoved = errors.New("venue label changed during run")

// Orchestrator is the only writer of venue label state.
type Orchestrator struct {
	venues      core.VenueStore
	fetcher     core.EvidenceFetcher
	gateway     core.InferenceGateway
	notifier    Notifier
	locks       *venueLocks
	retry       *RetryPolicy
	callTimeout time.Duration
	now         func() time.Time
	metrics     *Metrics
	logger      *logging.Logger
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets the event sink.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithCallTimeout bounds each evidence fetch and each inference call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

// WithRetryPolicy overrides the commit conflict policy.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.retry = p
		}
	}
}

// WithClock overrides the clock used for recheck timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an orchestrator. The fetcher and gateway are
// shared by every run.
func NewOrchestrator(venues core.VenueStore, fetcher core.EvidenceFetcher, gateway core.InferenceGateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		venues:      venues,
		fetcher:     fetcher,
		gateway:     gateway,
		notifier:    nopNotifier{},
		locks:       newVenueLocks(),
		retry:       ConflictRetryPolicy(),
		callTimeout: 30 * time.Second,
		now:         time.Now,
		metrics:     NewMetrics(),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithComponent("orchestrator")
	return o
}

// Metrics returns the orchestrator's metrics collector.
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// InitialLabel labels an unlabeled venue from a single piece of evidence.
// A failed attempt leaves the venue unlabeled and is not an error.
func (o *Orchestrator) InitialLabel(ctx context.Context, venueID core.VenueID, ref core.EvidenceRef) (Result, error) {
	start := time.Now()
	unlock, err := o.locks.lock(ctx, venueID)
	if err != nil {
		return Result{Outcome: OutcomeAbandoned}, err
	}
	defer unlock()

	log := o.logger.WithVenue(string(venueID))

	venue, err := o.venues.GetVenue(ctx, venueID)
	if err != nil {
		return Result{}, err
	}
	if venue.Label != nil {
		return o.finish(Result{Outcome: OutcomeSkipped}, start), nil
	}

	res := Result{Tried: []core.EvidenceRef{ref}}
	inferred, err := o.attempt(ctx, ref)
	if err != nil {
		if ctx.Err() != nil {
			res.Outcome = OutcomeAbandoned
			return o.finish(res, start), ctx.Err()
		}
		log.Info("initial labelling failed", "evidence_ref", log.Sanitize(string(ref)), "error", err)
		res.Outcome = OutcomeUnchanged
		return o.finish(res, start), nil
	}

	label := core.VenueLabel{Label: inferred, EvidenceRef: ref}
	now := o.now().UTC()
	mark := core.RecheckMark{At: now, Through: core.ThroughLatest}
	err = o.commit(ctx, venue, true, func(ctx context.Context, version int64) error {
		return o.venues.CommitLabel(ctx, venueID, version, label, mark)
	})
	if err != nil {
		return o.abandon(res, start, log, err)
	}

	res.Outcome = OutcomeLabeled
	res.Label = &label
	o.notifier.Publish(events.NewLabelUpdatedEvent(venueID, label, SourceInitial, now))
	log.Info("venue labelled", "ramp", label.Ramp, "curb", label.Curb)
	return o.finish(res, start), nil
}

// Reevaluate re-runs inference over a unanimous window's evidence. The
// first successful inference becomes the new label; if none succeeds the
// venue is flagged as needing evidence. Nothing is written if the venue
// changed since the window was read.
func (o *Orchestrator) Reevaluate(ctx context.Context, w Window) (Result, error) {
	start := time.Now()
	if w.Venue == nil {
		return Result{}, core.ErrValidation(core.CodeInvalidPayload, "window has no venue")
	}
	venueID := w.Venue.ID

	unlock, err := o.locks.lock(ctx, venueID)
	if err != nil {
		return Result{Outcome: OutcomeAbandoned}, err
	}
	defer unlock()

	log := o.logger.WithVenue(string(venueID))

	current, err := o.venues.GetVenue(ctx, venueID)
	if err != nil {
		return Result{}, err
	}
	if !current.Label.Equal(w.Venue.Label) || consumedBy(w, current) {
		log.Debug("venue moved on before re-evaluation, skipping")
		return o.finish(Result{Outcome: OutcomeSkipped}, start), nil
	}

	refs := w.EvidenceRefs()
	res := Result{Tried: make([]core.EvidenceRef, 0, len(refs))}

	for _, ref := range refs {
		res.Tried = append(res.Tried, ref)
		inferred, err := o.attempt(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				res.Outcome = OutcomeAbandoned
				return o.finish(res, start), ctx.Err()
			}
			log.Debug("evidence rejected", "evidence_ref", log.Sanitize(string(ref)), "error", err)
			continue
		}

		label := core.VenueLabel{Label: inferred, EvidenceRef: ref}
		now := o.now().UTC()
		mark := core.RecheckMark{At: now, Through: w.Through()}
		err = o.commit(ctx, current, false, func(ctx context.Context, version int64) error {
			return o.venues.CommitLabel(ctx, venueID, version, label, mark)
		})
		if err != nil {
			return o.abandon(res, start, log, err)
		}
		res.Outcome = OutcomeLabeled
		res.Label = &label
		o.notifier.Publish(events.NewLabelUpdatedEvent(venueID, label, SourceReevaluation, now))
		log.Info("label re-evaluated",
			"ramp", label.Ramp,
			"curb", label.Curb,
			"attempts", len(res.Tried),
		)
		return o.finish(res, start), nil
	}

	now := o.now().UTC()
	mark := core.RecheckMark{At: now, Through: w.Through()}
	err = o.commit(ctx, current, false, func(ctx context.Context, version int64) error {
		return o.venues.CommitNeedsEvidence(ctx, venueID, version, mark)
	})
	if err != nil {
		return o.abandon(res, start, log, err)
	}
	res.Outcome = OutcomeNeedsEvidence
	o.notifier.Publish(events.NewLabelNeedsEvidenceEvent(venueID, len(res.Tried), now))
	log.Info("re-evaluation found no usable evidence", "attempts", len(res.Tried))
	return o.finish(res, start), nil
}

// ForceLabel sets a venue's label unconditionally and marks every stored
// report as covered. It shares the venue lock with automatic runs and fails
// with a conflict if the commit keeps racing another writer.
func (o *Orchestrator) ForceLabel(ctx context.Context, venueID core.VenueID, label core.VenueLabel) (*core.Venue, error) {
	now := o.now().UTC()
	mark := core.RecheckMark{At: now, Through: core.ThroughLatest}
	venue, err := o.overwrite(ctx, venueID, func(ctx context.Context, version int64) error {
		return o.venues.CommitLabel(ctx, venueID, version, label, mark)
	})
	if err != nil {
		return nil, err
	}

	o.notifier.Publish(events.NewLabelUpdatedEvent(venueID, label, SourceManual, now))
	o.logger.WithVenue(string(venueID)).Info("label set manually", "ramp", label.Ramp, "curb", label.Curb)
	return venue, nil
}

// RestoreState writes a venue's complete label state as recorded elsewhere,
// such as in a snapshot. The recheck time is kept as given. No event is
// published.
func (o *Orchestrator) RestoreState(ctx context.Context, venueID core.VenueID, state core.LabelState) (*core.Venue, error) {
	venue, err := o.overwrite(ctx, venueID, func(ctx context.Context, version int64) error {
		return o.venues.RestoreLabelState(ctx, venueID, version, state)
	})
	if err != nil {
		return nil, err
	}
	o.logger.WithVenue(string(venueID)).Debug("label state restored",
		"labeled", state.Label != nil,
		"needs_evidence", state.NeedsEvidence,
	)
	return venue, nil
}

// overwrite applies an unconditional write under the venue lock. Conflicts
// are retried against the fresh version; exhaustion is a conflict error.
func (o *Orchestrator) overwrite(ctx context.Context, venueID core.VenueID, write func(ctx context.Context, version int64) error) (*core.Venue, error) {
	unlock, err := o.locks.lock(ctx, venueID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	venue, err := o.venues.GetVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}

	err = o.retry.Execute(ctx, func(ctx context.Context, attempt int) error {
		version := venue.Version
		if attempt > 1 {
			fresh, err := o.venues.GetVenue(ctx, venueID)
			if err != nil {
				return err
			}
			version = fresh.Version
		}
		return write(ctx, version)
	}, o.notifyConflict(venueID))
	if err != nil {
		if IsRetryExhausted(err) {
			return nil, core.ErrConflict("venue", string(venueID))
		}
		return nil, err
	}
	return o.venues.GetVenue(ctx, venueID)
}

// attempt fetches one piece of evidence and runs inference on it. Each call
// gets its own deadline; a deadline hit counts as a failed attempt.
func (o *Orchestrator) attempt(ctx context.Context, ref core.EvidenceRef) (core.Label, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	data, err := o.fetcher.Fetch(fetchCtx, ref)
	cancel()
	if err != nil {
		return core.Label{}, err
	}

	inferCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	label, err := o.gateway.Infer(inferCtx, ref, data)
	o.metrics.recordInference(err != nil)
	return label, err
}

// commit applies write under the conflict retry policy. On a retry the
// venue is re-read; if its label no longer matches the snapshot the run is
// dropped. Initial labelling requires the venue to still be unlabeled.
func (o *Orchestrator) commit(ctx context.Context, snapshot *core.Venue, initial bool, write func(ctx context.Context, version int64) error) error {
	return o.retry.Execute(ctx, func(ctx context.Context, attempt int) error {
		version := snapshot.Version
		if attempt > 1 {
			fresh, err := o.venues.GetVenue(ctx, snapshot.ID)
			if err != nil {
				return err
			}
			if initial && fresh.Label != nil {
				return errLabelMoved
			}
			if !initial && !fresh.Label.Equal(snapshot.Label) {
				return errLabelMoved
			}
			version = fresh.Version
		}
		return write(ctx, version)
	}, o.notifyConflict(snapshot.ID))
}

func (o *Orchestrator) notifyConflict(venueID core.VenueID) RetryNotifyFunc {
	return func(attempt int, err error, delay time.Duration) {
		o.metrics.recordConflict()
		o.logger.Debug("venue commit conflict, retrying",
			"venue_id", string(venueID),
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	}
}

// abandon turns a failed commit into a result. Conflicts and a moved label
// are dropped silently; the next qualifying report will trigger again.
// Anything else, such as a storage failure, is returned.
func (o *Orchestrator) abandon(res Result, start time.Time, log *logging.Logger, err error) (Result, error) {
	res.Outcome = OutcomeAbandoned
	res.Label = nil
	switch {
	case errors.Is(err, errLabelMoved):
		log.Info("venue label changed concurrently, dropping run")
		return o.finish(res, start), nil
	case IsRetryExhausted(err):
		log.Warn("venue commit kept conflicting, dropping run", "error", err)
		return o.finish(res, start), nil
	default:
		return o.finish(res, start), err
	}
}

func (o *Orchestrator) finish(res Result, start time.Time) Result {
	o.metrics.recordOutcome(res.Outcome, time.Since(start))
	return res
}
