package reconcile

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/logging"
)

// Deps are the collaborators of the reconciliation engine.
type Deps struct {
	Venues      core.VenueStore
	Reports     core.ReportStore
	Fetcher     core.EvidenceFetcher
	Gateway     core.InferenceGateway
	Notifier    Notifier
	Logger      *logging.Logger
	CallTimeout time.Duration
	Clock       func() time.Time
}

// Engine bundles the intake, tracker and orchestrator around one set of
// collaborators.
type Engine struct {
	Intake       *Intake
	Tracker      *Tracker
	Orchestrator *Orchestrator

	venues core.VenueStore
	logger *logging.Logger
}

// NewEngine wires an engine.
func NewEngine(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}

	metrics := NewMetrics()
	orch := NewOrchestrator(d.Venues, d.Fetcher, d.Gateway,
		WithNotifier(d.Notifier),
		WithCallTimeout(d.CallTimeout),
		WithClock(clock),
		WithMetrics(metrics),
		WithLogger(logger),
	)
	tracker := NewTracker(d.Venues, d.Reports, orch, metrics, logger)
	intake := NewIntake(d.Venues, d.Reports, orch, tracker,
		WithIntakeNotifier(d.Notifier),
		WithIntakeClock(clock),
		WithIntakeLogger(logger),
	)

	return &Engine{
		Intake:       intake,
		Tracker:      tracker,
		Orchestrator: orch,
		venues:       d.Venues,
		logger:       logger,
	}
}

// Metrics returns the engine's counters.
func (e *Engine) Metrics() MetricsSnapshot {
	return e.Orchestrator.Metrics().Snapshot()
}

// RecheckAll runs a consensus check on every venue, at most parallel at a
// time. It picks up windows whose reconciliation was deferred, for example
// by a crash between a report commit and its check.
func (e *Engine) RecheckAll(ctx context.Context, parallel int) (map[core.VenueID]TriggerResult, error) {
	venues, err := e.venues.ListVenues(ctx)
	if err != nil {
		return nil, err
	}
	if parallel <= 0 {
		parallel = 1
	}

	var mu sync.Mutex
	results := make(map[core.VenueID]TriggerResult, len(venues))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, v := range venues {
		id := v.ID
		g.Go(func() error {
			res, err := e.Tracker.CheckAndMaybeTrigger(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.logger.Warn("recheck failed", "venue_id", string(id), "error", err)
			}
			mu.Lock()
			results[id] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
