package reconcile

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/testutil"
)

func TestIntake_DisagreementComputedAtSubmission(t *testing.T) {
	tests := []struct {
		name     string
		label    *core.VenueLabel
		asserted core.Label
		want     bool
	}{
		{"no label never disagrees", nil, curbNoRamp, false},
		{"matching label", &core.VenueLabel{Label: rampNoCurb}, rampNoCurb, false},
		{"ramp differs", &core.VenueLabel{Label: rampNoCurb}, core.Label{Ramp: false, Curb: false}, true},
		{"curb differs", &core.VenueLabel{Label: rampNoCurb}, core.Label{Ramp: true, Curb: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.label != nil {
				testutil.SeedLabeledVenue(t, f.store, "cafe", *tt.label)
			} else {
				f.createVenue(t, "cafe")
			}

			id := f.submit(t, "cafe", tt.asserted)

			r, err := f.store.GetReport(context.Background(), id)
			if err != nil {
				t.Fatalf("GetReport() error = %v", err)
			}
			if !r.DisagreementKnown() {
				t.Fatal("disagreement should be computed at submission")
			}
			if r.IsDisagreeing() != tt.want {
				t.Errorf("disagrees = %v, want %v", r.IsDisagreeing(), tt.want)
			}
		})
	}
}

func TestIntake_FlagNotRecomputedAfterLabelChange(t *testing.T) {
	f := newFixture(t)
	testutil.SeedLabeledVenue(t, f.store, "cafe", core.VenueLabel{Label: rampNoCurb})
	id := f.submit(t, "cafe", curbNoRamp)

	if _, err := f.engine.Orchestrator.ForceLabel(context.Background(), "cafe", core.VenueLabel{Label: curbNoRamp}); err != nil {
		t.Fatal(err)
	}

	r, _ := f.store.GetReport(context.Background(), id)
	if !r.IsDisagreeing() {
		t.Error("stored flag must keep the value computed at submission")
	}
}

func TestIntake_Validation(t *testing.T) {
	f := newFixture(t)
	f.createVenue(t, "cafe")

	tests := []struct {
		name string
		req  SubmitRequest
	}{
		{"bad venue id", SubmitRequest{VenueID: "../etc", AuthorID: "u1"}},
		{"missing author", SubmitRequest{VenueID: "cafe"}},
		{"relative evidence", SubmitRequest{VenueID: "cafe", AuthorID: "u1", EvidenceRefs: []core.EvidenceRef{"/img.jpg"}}},
		{"text too long", SubmitRequest{VenueID: "cafe", AuthorID: "u1", Text: strings.Repeat("x", core.MaxReportTextLength+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Intake.Submit(context.Background(), tt.req)
			if !core.IsCategory(err, core.ErrCatValidation) {
				t.Errorf("error = %v, want validation", err)
			}
		})
	}

	reports, _ := f.store.RecentReports(context.Background(), "cafe", 10)
	if len(reports) != 0 {
		t.Errorf("rejected reports were stored: %d", len(reports))
	}
}

func TestIntake_UnknownVenue(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Intake.Submit(context.Background(), SubmitRequest{VenueID: "ghost", AuthorID: "u1"})
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestIntake_StorageErrorIsFatal(t *testing.T) {
	f := newFixture(t)
	f.createVenue(t, "cafe")
	f.store.WithInsertError(core.ErrStorage("disk full"))

	_, err := f.engine.Intake.Submit(context.Background(), SubmitRequest{VenueID: "cafe", AuthorID: "u1"})
	if !core.IsCategory(err, core.ErrCatStorage) {
		t.Errorf("error = %v, want storage", err)
	}
	if len(f.notifier.types()) != 0 {
		t.Error("no event should be published for an unsaved report")
	}
}

// failingCommitStore fails every needs-evidence commit.
type failingCommitStore struct {
	*testutil.MemoryStore
}

func (s failingCommitStore) CommitNeedsEvidence(context.Context, core.VenueID, int64, core.RecheckMark) error {
	return core.ErrStorage("database is locked")
}

func TestIntake_ReconciliationFailureDoesNotFailSubmit(t *testing.T) {
	f := newFixture(t)
	testutil.SeedLabeledVenue(t, f.store, "cafe", core.VenueLabel{Label: rampNoCurb})
	engine := NewEngine(Deps{
		Venues:   failingCommitStore{f.store},
		Reports:  f.store,
		Fetcher:  f.fetcher,
		Gateway:  f.gateway,
		Notifier: f.notifier,
	})

	for i := 0; i < 3; i++ {
		id, err := engine.Intake.Submit(context.Background(), SubmitRequest{
			VenueID: "cafe", AuthorID: "u1", Asserted: curbNoRamp,
		})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if id == "" {
			t.Fatal("report should be accepted")
		}
	}

	if f.venue(t, "cafe").NeedsEvidence {
		t.Error("failed commit must leave the venue untouched")
	}
	reports, _ := f.store.RecentReports(context.Background(), "cafe", 10)
	if len(reports) != 3 {
		t.Errorf("reports = %d, want 3", len(reports))
	}
}

func TestIntake_ConcurrentReportsReevaluateOnce(t *testing.T) {
	f := newFixture(t)
	testutil.SeedLabeledVenue(t, f.store, "cafe", core.VenueLabel{Label: rampNoCurb})
	base := f.store.CommitCount()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.Intake.Submit(context.Background(), SubmitRequest{
				VenueID: "cafe", AuthorID: "u1", Asserted: curbNoRamp,
			}); err != nil {
				t.Errorf("Submit() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.store.CommitCount() - base; got != 1 {
		t.Errorf("commits = %d, want exactly 1", got)
	}
	if !f.venue(t, "cafe").NeedsEvidence {
		t.Error("venue should need evidence")
	}
}
