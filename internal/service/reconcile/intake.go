package reconcile

import (
	"context"
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/events"
	"github.com/kang022878/WheelCity-back-2025/internal/logging"
)

// SubmitRequest carries a new report.
type SubmitRequest struct {
	VenueID      core.VenueID
	AuthorID     string
	Asserted     core.Label
	EvidenceRefs []core.EvidenceRef
	Experience   core.Experience
	Text         string
}

// Intake validates and stores reports, then drives reconciliation.
type Intake struct {
	venues       core.VenueStore
	reports      core.ReportStore
	orchestrator *Orchestrator
	tracker      *Tracker
	notifier     Notifier
	now          func() time.Time
	logger       *logging.Logger
}

// IntakeOption configures an Intake.
type IntakeOption func(*Intake)

// WithIntakeNotifier sets the sink for report:submitted events.
func WithIntakeNotifier(n Notifier) IntakeOption {
	return func(in *Intake) {
		if n != nil {
			in.notifier = n
		}
	}
}

// WithIntakeClock overrides the clock used for report timestamps.
func WithIntakeClock(now func() time.Time) IntakeOption {
	return func(in *Intake) {
		in.now = now
	}
}

// WithIntakeLogger sets the logger.
func WithIntakeLogger(l *logging.Logger) IntakeOption {
	return func(in *Intake) {
		if l != nil {
			in.logger = l
		}
	}
}

// NewIntake wires the report pipeline.
func NewIntake(venues core.VenueStore, reports core.ReportStore, orchestrator *Orchestrator, tracker *Tracker, opts ...IntakeOption) *Intake {
	in := &Intake{
		venues:       venues,
		reports:      reports,
		orchestrator: orchestrator,
		tracker:      tracker,
		notifier:     nopNotifier{},
		now:          time.Now,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = in.logger.WithComponent("intake")
	return in
}

// Submit stores a report and reconciles the venue's label.
//
// The report is committed before reconciliation starts. Reconciliation
// failures are logged and never fail the submission; only validation,
// unknown venues and storage errors do.
func (in *Intake) Submit(ctx context.Context, req SubmitRequest) (core.ReportID, error) {
	report := &core.Report{
		VenueID:      req.VenueID,
		AuthorID:     req.AuthorID,
		Asserted:     req.Asserted,
		EvidenceRefs: req.EvidenceRefs,
		Experience:   req.Experience,
		Text:         req.Text,
	}
	if err := report.Validate(); err != nil {
		return "", err
	}

	venue, err := in.venues.GetVenue(ctx, req.VenueID)
	if err != nil {
		return "", err
	}

	report.CreatedAt = in.now().UTC()
	report.SetDisagrees(core.Disagrees(report.Asserted, venue.Label))
	if err := in.reports.InsertReport(ctx, report); err != nil {
		return "", err
	}

	log := in.logger.WithVenue(string(venue.ID)).WithReport(string(report.ID))
	log.Info("report accepted", "disagrees", report.IsDisagreeing(), "evidence", len(report.EvidenceRefs))
	in.notifier.Publish(events.NewReportSubmittedEvent(report))

	if venue.Label == nil && len(report.EvidenceRefs) > 0 {
		if _, err := in.orchestrator.InitialLabel(ctx, venue.ID, report.EvidenceRefs[0]); err != nil {
			log.Warn("initial labelling did not complete", "error", err)
		}
	}

	if report.IsDisagreeing() {
		if _, err := in.tracker.CheckAndMaybeTrigger(ctx, venue.ID); err != nil {
			log.Warn("consensus check did not complete", "error", err)
		}
	}

	return report.ID, nil
}
