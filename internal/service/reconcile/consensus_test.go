package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/testutil"
)

func insertReports(t *testing.T, store *testutil.MemoryStore, venueID core.VenueID, reports ...*core.Report) {
	t.Helper()
	for _, r := range reports {
		if err := store.InsertReport(context.Background(), r); err != nil {
			t.Fatalf("InsertReport() error = %v", err)
		}
	}
}

func TestTracker_FewerThanWindowNeverTriggers(t *testing.T) {
	f := newFixture(t)
	testutil.SeedLabeledVenue(t, f.store, "cafe", core.VenueLabel{Label: rampNoCurb})

	for n := 0; n < core.ConsensusWindowSize; n++ {
		decision, _, err := f.engine.Tracker.Evaluate(context.Background(), "cafe")
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if decision != DecisionNone {
			t.Errorf("with %d reports decision = %s, want none", n, decision)
		}
		insertReports(t, f.store, "cafe", testutil.NewTestReport("cafe", curbNoRamp, testutil.WithDisagrees(true)))
	}
}

func TestTracker_WindowNotUnanimous(t *testing.T) {
	tests := []struct {
		name  string
		order []core.Label
	}{
		{"agreeing report newest", []core.Label{curbNoRamp, curbNoRamp, rampNoCurb}},
		{"agreeing report oldest", []core.Label{rampNoCurb, curbNoRamp, curbNoRamp}},
		{"agreeing report in middle", []core.Label{curbNoRamp, rampNoCurb, curbNoRamp}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			original := core.VenueLabel{Label: rampNoCurb}
			testutil.SeedLabeledVenue(t, f.store, "cafe", original)

			for _, asserted := range tt.order {
				f.submit(t, "cafe", asserted)
			}

			decision, _, err := f.engine.Tracker.Evaluate(context.Background(), "cafe")
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if decision != DecisionNone {
				t.Errorf("decision = %s, want none", decision)
			}
			v := f.venue(t, "cafe")
			if v.NeedsEvidence || !v.Label.Equal(&original) {
				t.Errorf("venue changed: %+v", v)
			}
		})
	}
}

func TestTracker_OnlyMostRecentWindowCounts(t *testing.T) {
	f := newFixture(t)
	testutil.SeedLabeledVenue(t, f.store, "cafe", core.VenueLabel{Label: rampNoCurb})

	f.submit(t, "cafe", rampNoCurb)
	for i := 0; i < 3; i++ {
		f.submit(t, "cafe", curbNoRamp)
	}

	if !f.venue(t, "cafe").NeedsEvidence {
		t.Error("the three newest reports disagree and should trigger")
	}
}

func TestTracker_IdempotentAfterReevaluation(t *testing.T) {
	f := newFixture(t)
	testutil.SeedLabeledVenue(t, f.store, "cafe", core.VenueLabel{Label: rampNoCurb})
	ref := f.evidence("https://cdn.example/1.jpg")
	f.gateway.WithLabel(ref, curbNoRamp)

	f.submit(t, "cafe", curbNoRamp, ref)
	f.submit(t, "cafe", curbNoRamp)
	f.submit(t, "cafe", curbNoRamp)

	calls := f.gateway.CallCount()
	commits := f.store.CommitCount()

	for i := 0; i < 3; i++ {
		res, err := f.engine.Tracker.CheckAndMaybeTrigger(context.Background(), "cafe")
		if err != nil {
			t.Fatalf("CheckAndMaybeTrigger() error = %v", err)
		}
		if res.Decision != DecisionNone {
			t.Errorf("re-check %d decision = %s, want none", i, res.Decision)
		}
	}
	if f.gateway.CallCount() != calls {
		t.Error("re-check must not call the gateway again")
	}
	if f.store.CommitCount() != commits {
		t.Error("re-check must not commit again")
	}
}

func TestTracker_IdempotentAfterNeedsEvidence(t *testing.T) {
	f := newFixture(t)
	testutil.SeedLabeledVenue(t, f.store, "cafe", core.VenueLabel{Label: rampNoCurb})
	for i := 0; i < 3; i++ {
		f.submit(t, "cafe", curbNoRamp)
	}
	stamped := *f.venue(t, "cafe").LastRecheckAt
	covered := f.venue(t, "cafe").RecheckedThrough

	res, err := f.engine.Tracker.CheckAndMaybeTrigger(context.Background(), "cafe")
	if err != nil {
		t.Fatalf("CheckAndMaybeTrigger() error = %v", err)
	}
	if res.Decision != DecisionNone {
		t.Errorf("decision = %s, want none", res.Decision)
	}
	if !f.venue(t, "cafe").LastRecheckAt.Equal(stamped) {
		t.Error("last_recheck_at should not move")
	}

	// A fresh disagreeing report restarts the process.
	f.submit(t, "cafe", curbNoRamp)
	if f.venue(t, "cafe").RecheckedThrough <= covered {
		t.Error("new disagreeing report should trigger another recheck")
	}
}

func TestTracker_FrozenClockStillTriggers(t *testing.T) {
	instant := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t)
	f.engine = NewEngine(Deps{
		Venues:   f.store,
		Reports:  f.store,
		Fetcher:  f.fetcher,
		Gateway:  f.gateway,
		Notifier: f.notifier,
		Clock:    func() time.Time { return instant },
	})
	f.createVenue(t, "cafe")

	if _, err := f.engine.Orchestrator.ForceLabel(context.Background(), "cafe", core.VenueLabel{Label: rampNoCurb}); err != nil {
		t.Fatalf("ForceLabel() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		f.submit(t, "cafe", curbNoRamp)
	}

	v := f.venue(t, "cafe")
	if !v.NeedsEvidence {
		t.Error("reports sharing the recheck timestamp should still trigger")
	}
	if !v.LastRecheckAt.Equal(instant) {
		t.Errorf("last_recheck_at = %v, want %v", v.LastRecheckAt, instant)
	}
}

func TestTracker_LateTimestampedReportTriggers(t *testing.T) {
	f := newFixture(t)
	testutil.SeedLabeledVenue(t, f.store, "cafe", core.VenueLabel{Label: rampNoCurb})
	for i := 0; i < 3; i++ {
		f.submit(t, "cafe", curbNoRamp)
	}
	v := f.venue(t, "cafe")
	if !v.NeedsEvidence {
		t.Fatal("first window should end in needs-evidence")
	}

	// Arrives after the recheck but carries the recheck's own timestamp,
	// as from a host whose clock lags or has coarse resolution.
	ref := f.evidence("https://cdn.example/late.jpg")
	f.gateway.WithLabel(ref, curbNoRamp)
	insertReports(t, f.store, "cafe", testutil.NewTestReport("cafe", curbNoRamp,
		testutil.WithDisagrees(true),
		testutil.WithCreatedAt(*v.LastRecheckAt),
		testutil.WithEvidence(ref),
	))

	res, err := f.engine.Tracker.CheckAndMaybeTrigger(context.Background(), "cafe")
	if err != nil {
		t.Fatalf("CheckAndMaybeTrigger() error = %v", err)
	}
	if res.Decision != DecisionReevaluate || res.Result.Outcome != OutcomeLabeled {
		t.Fatalf("result = %+v, want a re-evaluation that labels", res)
	}
	if got := f.venue(t, "cafe").Label; !got.Equal(&core.VenueLabel{Label: curbNoRamp, EvidenceRef: ref}) {
		t.Errorf("label = %+v", got)
	}
}

func TestTracker_BackfillsLegacyReports(t *testing.T) {
	f := newFixture(t)
	testutil.SeedLabeledVenue(t, f.store, "cafe", core.VenueLabel{Label: rampNoCurb})

	legacy := []*core.Report{
		testutil.NewTestReport("cafe", curbNoRamp),
		testutil.NewTestReport("cafe", curbNoRamp),
		testutil.NewTestReport("cafe", curbNoRamp),
	}
	insertReports(t, f.store, "cafe", legacy...)

	decision, _, err := f.engine.Tracker.Evaluate(context.Background(), "cafe")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if decision != DecisionReevaluate {
		t.Errorf("decision = %s, want reevaluate", decision)
	}
	for _, r := range legacy {
		got, err := f.store.GetReport(context.Background(), r.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !got.DisagreementKnown() || !got.IsDisagreeing() {
			t.Errorf("report %s not back-filled as disagreeing", r.ID)
		}
	}
}

func TestTracker_BackfillAgainstCurrentLabel(t *testing.T) {
	f := newFixture(t)
	testutil.SeedLabeledVenue(t, f.store, "cafe", core.VenueLabel{Label: rampNoCurb})

	agreeing := testutil.NewTestReport("cafe", rampNoCurb)
	insertReports(t, f.store, "cafe",
		testutil.NewTestReport("cafe", curbNoRamp, testutil.WithDisagrees(true)),
		agreeing,
		testutil.NewTestReport("cafe", curbNoRamp, testutil.WithDisagrees(true)),
	)

	decision, _, err := f.engine.Tracker.Evaluate(context.Background(), "cafe")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if decision != DecisionNone {
		t.Errorf("decision = %s, want none", decision)
	}
	got, _ := f.store.GetReport(context.Background(), agreeing.ID)
	if !got.DisagreementKnown() || got.IsDisagreeing() {
		t.Error("agreeing legacy report should be back-filled as false")
	}
}

func TestTracker_StoredFlagsAreNotRecomputed(t *testing.T) {
	f := newFixture(t)
	testutil.SeedLabeledVenue(t, f.store, "cafe", core.VenueLabel{Label: rampNoCurb})

	// Flags computed against an earlier label; they agree with the label
	// now in force yet still count as disagreeing.
	insertReports(t, f.store, "cafe",
		testutil.NewTestReport("cafe", rampNoCurb, testutil.WithDisagrees(true)),
		testutil.NewTestReport("cafe", rampNoCurb, testutil.WithDisagrees(true)),
		testutil.NewTestReport("cafe", rampNoCurb, testutil.WithDisagrees(true)),
	)

	decision, _, err := f.engine.Tracker.Evaluate(context.Background(), "cafe")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if decision != DecisionReevaluate {
		t.Errorf("decision = %s, want reevaluate", decision)
	}
}

func TestTracker_UnknownVenue(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Tracker.CheckAndMaybeTrigger(context.Background(), "ghost")
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestWindow_EvidenceRefsOldestFirstDeduped(t *testing.T) {
	now := time.Now()
	w := Window{
		Venue: &core.Venue{ID: "cafe"},
		Reports: []*core.Report{
			{ID: "newest", CreatedAt: now, EvidenceRefs: []core.EvidenceRef{"https://e/c", "https://e/a"}},
			{ID: "middle", CreatedAt: now.Add(-time.Minute)},
			{ID: "oldest", CreatedAt: now.Add(-2 * time.Minute), EvidenceRefs: []core.EvidenceRef{"https://e/a", "https://e/b"}},
		},
	}

	got := w.EvidenceRefs()
	want := []core.EvidenceRef{"https://e/a", "https://e/b", "https://e/c"}
	if len(got) != len(want) {
		t.Fatalf("refs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("refs[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if w.Newest().ID != "newest" {
		t.Errorf("newest = %s", w.Newest().ID)
	}
}

func TestWindow_Consumed(t *testing.T) {
	reports := []*core.Report{{Seq: 7}, {Seq: 9}, {Seq: 8}}

	tests := []struct {
		name    string
		through int64
		want    bool
	}{
		{"never rechecked", 0, false},
		{"rechecked before newest report", 8, false},
		{"rechecked through newest report", 9, true},
		{"rechecked past window", 12, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Window{Venue: &core.Venue{RecheckedThrough: tt.through}, Reports: reports}
			if got := w.Consumed(); got != tt.want {
				t.Errorf("Consumed() = %v, want %v", got, tt.want)
			}
		})
	}
	if got := (Window{Reports: reports}).Through(); got != 9 {
		t.Errorf("Through() = %d, want 9", got)
	}
}
