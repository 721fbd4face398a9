package testutil_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/testutil"
)

func TestMemoryStore_CommitIsCompareAndSet(t *testing.T) {
	store := testutil.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateVenue(ctx, testutil.NewTestVenue("v1")))

	label := core.VenueLabel{Label: core.Label{Ramp: true}}
	require.NoError(t, store.CommitLabel(ctx, "v1", 0, label, core.RecheckMark{At: time.Now()}))

	err := store.CommitNeedsEvidence(ctx, "v1", 0, core.RecheckMark{At: time.Now()})
	assert.True(t, core.IsCategory(err, core.ErrCatConflict))
	assert.Equal(t, 1, store.CommitCount())
}

func TestMemoryStore_RecentReportsOrdering(t *testing.T) {
	store := testutil.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateVenue(ctx, testutil.NewTestVenue("v1")))

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []core.ReportID{"a", "b", "c"} {
		r := testutil.NewTestReport("v1", core.Label{}, testutil.WithCreatedAt(at))
		r.ID = id
		require.NoError(t, store.InsertReport(ctx, r))
	}

	got, err := store.RecentReports(ctx, "v1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.ReportID("c"), got[0].ID)
	assert.Equal(t, core.ReportID("b"), got[1].ID)
}

func TestMemoryStore_SetDisagreementNeverOverwrites(t *testing.T) {
	store := testutil.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateVenue(ctx, testutil.NewTestVenue("v1")))

	r := testutil.NewTestReport("v1", core.Label{}, testutil.WithDisagrees(false))
	require.NoError(t, store.InsertReport(ctx, r))
	require.NoError(t, store.SetDisagreement(ctx, r.ID, true))

	got, err := store.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDisagreeing())
}

func TestFakes_ScriptedResponses(t *testing.T) {
	ctx := context.Background()
	fetcher := testutil.NewFakeFetcher().WithImage("https://e/1.jpg", []byte("img"))
	gateway := testutil.NewFakeGateway().WithLabel("https://e/1.jpg", core.Label{Curb: true})

	data, err := fetcher.Fetch(ctx, "https://e/1.jpg")
	require.NoError(t, err)
	label, err := gateway.Infer(ctx, "https://e/1.jpg", data)
	require.NoError(t, err)
	assert.Equal(t, core.Label{Curb: true}, label)

	_, err = fetcher.Fetch(ctx, "https://e/2.jpg")
	assert.True(t, core.IsCategory(err, core.ErrCatEvidenceUnavailable))
	_, err = gateway.Infer(ctx, "https://e/2.jpg", nil)
	assert.True(t, core.IsCategory(err, core.ErrCatInference))

	assert.Equal(t, []core.EvidenceRef{"https://e/1.jpg", "https://e/2.jpg"}, fetcher.Refs())
	assert.Equal(t, 2, gateway.CallCount())
}
