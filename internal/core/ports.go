package core

import (
	"context"
	"time"
)

// ConsensusWindowSize is the number of most recent reports that must all
// disagree with the label in force before a venue is re-evaluated.
const ConsensusWindowSize = 3

// ThroughLatest marks a commit as covering every report stored for the venue
// at commit time.
const ThroughLatest int64 = -1

// RecheckMark stamps a label-state commit.
type RecheckMark struct {
	At time.Time
	// Through is the Seq of the newest report acted on, or ThroughLatest.
	// A venue's RecheckedThrough never moves backwards.
	Through int64
}

// LabelState is the complete label state of a venue, as restored from a
// snapshot.
type LabelState struct {
	Label         *VenueLabel
	NeedsEvidence bool
	LastRecheckAt *time.Time
	// Through is the Seq of the newest covered report, or ThroughLatest.
	Through int64
}

// =============================================================================
// Venue Label Store
// =============================================================================

// VenueStore owns the label state of venues. Label-state commits are
// compare-and-set on Venue.Version: a stale expectedVersion yields a conflict
// error and no write.
type VenueStore interface {
	// CreateVenue registers a venue with no label.
	CreateVenue(ctx context.Context, venue *Venue) error

	// GetVenue returns the venue or a not-found error.
	GetVenue(ctx context.Context, id VenueID) (*Venue, error)

	// ListVenues returns all venues ordered by creation time.
	ListVenues(ctx context.Context) ([]*Venue, error)

	// CommitLabel sets the label, clears needs-evidence and applies the
	// recheck mark.
	CommitLabel(ctx context.Context, id VenueID, expectedVersion int64, label VenueLabel, mark RecheckMark) error

	// CommitNeedsEvidence flags the venue as needing evidence and applies the
	// recheck mark. The label is left untouched.
	CommitNeedsEvidence(ctx context.Context, id VenueID, expectedVersion int64, mark RecheckMark) error

	// RestoreLabelState overwrites the whole label state, including the
	// recheck time and coverage.
	RestoreLabelState(ctx context.Context, id VenueID, expectedVersion int64, state LabelState) error
}

// =============================================================================
// Report Repository
// =============================================================================

// ReportStore persists reports.
type ReportStore interface {
	InsertReport(ctx context.Context, report *Report) error
	GetReport(ctx context.Context, id ReportID) (*Report, error)

	// RecentReports returns up to n reports for a venue, newest first.
	RecentReports(ctx context.Context, venueID VenueID, n int) ([]*Report, error)

	// SetDisagreement back-fills the disagreement flag of a legacy report.
	// It never overwrites a flag that is already set.
	SetDisagreement(ctx context.Context, id ReportID, disagrees bool) error

	ListReportsByAuthor(ctx context.Context, authorID string, limit int) ([]*Report, error)
	DeleteReport(ctx context.Context, id ReportID) error
	VenueScores(ctx context.Context, venueID VenueID) (ReportScores, error)
}

// =============================================================================
// External Collaborators
// =============================================================================

// EvidenceFetcher retrieves the bytes behind an evidence reference.
type EvidenceFetcher interface {
	Fetch(ctx context.Context, ref EvidenceRef) ([]byte, error)
}

// InferenceGateway derives an accessibility label from an image.
type InferenceGateway interface {
	// Name identifies the gateway in logs.
	Name() string

	// Infer classifies the image. The reference is passed for media-type
	// hints only.
	Infer(ctx context.Context, ref EvidenceRef, image []byte) (Label, error)
}
