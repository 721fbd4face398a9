package reconcile

import (
	"context"
	"fmt"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/logging"
)

// Decision is the verdict of a consensus check.
type Decision string

const (
	DecisionNone       Decision = "none"
	DecisionReevaluate Decision = "reevaluate"
)

// Window is the most recent reports of a venue, newest first, together with
// the venue snapshot they were judged against.
type Window struct {
	Venue   *core.Venue
	Reports []*core.Report
}

// Newest returns the most recent report in the window.
func (w Window) Newest() *core.Report {
	if len(w.Reports) == 0 {
		return nil
	}
	return w.Reports[0]
}

// Unanimous reports whether the window is full and every report disagrees.
func (w Window) Unanimous() bool {
	if len(w.Reports) < core.ConsensusWindowSize {
		return false
	}
	for _, r := range w.Reports {
		if !r.IsDisagreeing() {
			return false
		}
	}
	return true
}

// Through returns the highest report sequence number in the window.
func (w Window) Through() int64 {
	var through int64
	for _, r := range w.Reports {
		through = max(through, r.Seq)
	}
	return through
}

// Consumed reports whether a label-state commit already covered every
// report in the window.
func (w Window) Consumed() bool {
	return consumedBy(w, w.Venue)
}

func consumedBy(w Window, v *core.Venue) bool {
	if len(w.Reports) == 0 || v == nil {
		return false
	}
	return w.Through() <= v.RecheckedThrough
}

// EvidenceRefs returns the union of the window's evidence references,
// oldest report first, each report's references in submitted order.
func (w Window) EvidenceRefs() []core.EvidenceRef {
	seen := make(map[core.EvidenceRef]struct{})
	refs := make([]core.EvidenceRef, 0)
	for i := len(w.Reports) - 1; i >= 0; i-- {
		for _, ref := range w.Reports[i].EvidenceRefs {
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs
}

// Reevaluator runs a re-evaluation for a unanimous window.
type Reevaluator interface {
	Reevaluate(ctx context.Context, w Window) (Result, error)
}

// TriggerResult is the outcome of CheckAndMaybeTrigger.
type TriggerResult struct {
	Decision Decision
	// Result is set when a re-evaluation ran.
	Result *Result
}

// Tracker decides whether sustained disagreement warrants a re-evaluation.
type Tracker struct {
	venues      core.VenueStore
	reports     core.ReportStore
	reevaluator Reevaluator
	metrics     *Metrics
	logger      *logging.Logger
}

// NewTracker creates a consensus tracker that hands unanimous windows to
// reevaluator.
func NewTracker(venues core.VenueStore, reports core.ReportStore, reevaluator Reevaluator, metrics *Metrics, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Tracker{
		venues:      venues,
		reports:     reports,
		reevaluator: reevaluator,
		metrics:     metrics,
		logger:      logger.WithComponent("consensus"),
	}
}

// Evaluate loads the consensus window of a venue and decides whether it
// should be re-evaluated. The venue is read once and every legacy report is
// back-filled against that snapshot.
func (t *Tracker) Evaluate(ctx context.Context, venueID core.VenueID) (Decision, *Window, error) {
	venue, err := t.venues.GetVenue(ctx, venueID)
	if err != nil {
		return DecisionNone, nil, err
	}

	reports, err := t.reports.RecentReports(ctx, venueID, core.ConsensusWindowSize)
	if err != nil {
		return DecisionNone, nil, err
	}
	w := &Window{Venue: venue, Reports: reports}
	if len(reports) < core.ConsensusWindowSize {
		return DecisionNone, w, nil
	}

	for _, r := range reports {
		if r.DisagreementKnown() {
			continue
		}
		disagrees := core.Disagrees(r.Asserted, venue.Label)
		if err := t.reports.SetDisagreement(ctx, r.ID, disagrees); err != nil {
			return DecisionNone, w, fmt.Errorf("back-filling report %s: %w", r.ID, err)
		}
		r.SetDisagrees(disagrees)
		t.logger.Debug("back-filled disagreement", "venue_id", string(venueID), "report_id", string(r.ID), "disagrees", disagrees)
	}

	if !w.Unanimous() {
		return DecisionNone, w, nil
	}
	if venue.Label == nil {
		// Flags computed against an older label no longer apply.
		return DecisionNone, w, nil
	}
	if w.Consumed() {
		t.logger.Debug("window already rechecked", "venue_id", string(venueID))
		return DecisionNone, w, nil
	}
	return DecisionReevaluate, w, nil
}

// CheckAndMaybeTrigger evaluates the window and, when it is unanimous,
// runs a re-evaluation.
func (t *Tracker) CheckAndMaybeTrigger(ctx context.Context, venueID core.VenueID) (TriggerResult, error) {
	decision, w, err := t.Evaluate(ctx, venueID)
	if err != nil || decision != DecisionReevaluate {
		return TriggerResult{Decision: DecisionNone}, err
	}

	t.metrics.recordTrigger()
	t.logger.Info("consensus window unanimous, re-evaluating",
		"venue_id", string(venueID),
		"window", len(w.Reports),
	)
	res, err := t.reevaluator.Reevaluate(ctx, *w)
	return TriggerResult{Decision: DecisionReevaluate, Result: &res}, err
}
