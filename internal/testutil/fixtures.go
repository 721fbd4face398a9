package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

// NewTestVenue creates a venue with sensible defaults. Use functional
// options to override specific fields.
func NewTestVenue(id core.VenueID, opts ...func(*core.Venue)) *core.Venue {
	v := &core.Venue{
		ID:   id,
		Name: "Venue " + string(id),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewTestReport creates a report for venueID asserting label.
func NewTestReport(venueID core.VenueID, asserted core.Label, opts ...func(*core.Report)) *core.Report {
	r := &core.Report{
		VenueID:  venueID,
		AuthorID: "user-1",
		Asserted: asserted,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithEvidence sets a report's evidence references.
func WithEvidence(refs ...core.EvidenceRef) func(*core.Report) {
	return func(r *core.Report) {
		r.EvidenceRefs = refs
	}
}

// WithCreatedAt sets a report's creation time.
func WithCreatedAt(t time.Time) func(*core.Report) {
	return func(r *core.Report) {
		r.CreatedAt = t
	}
}

// WithDisagrees sets a report's stored disagreement flag.
func WithDisagrees(v bool) func(*core.Report) {
	return func(r *core.Report) {
		r.SetDisagrees(v)
	}
}

// SeedLabeledVenue creates a venue in store and commits label to it.
func SeedLabeledVenue(t *testing.T, store *MemoryStore, id core.VenueID, label core.VenueLabel) *core.Venue {
	t.Helper()
	ctx := context.Background()
	if err := store.CreateVenue(ctx, NewTestVenue(id)); err != nil {
		t.Fatalf("creating venue: %v", err)
	}
	if err := store.CommitLabel(ctx, id, 0, label, core.RecheckMark{At: time.Now().Add(-time.Hour)}); err != nil {
		t.Fatalf("labeling venue: %v", err)
	}
	v, err := store.GetVenue(ctx, id)
	if err != nil {
		t.Fatalf("loading venue: %v", err)
	}
	return v
}
