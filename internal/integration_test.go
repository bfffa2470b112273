package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainlink-analytics/shelfgap/internal/materializer"
	"github.com/chainlink-analytics/shelfgap/internal/publisher"
	"github.com/chainlink-analytics/shelfgap/internal/testutil"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// ---------------------------------------------------------------------------
// End-to-end publish pipeline over the in-memory warehouse
// ---------------------------------------------------------------------------

func newPipeline(wh *testutil.MockWarehouse) *publisher.Publisher {
	return publisher.New(wh, materializer.New(wh), nil)
}

func TestPipeline_WeeklyCadence(t *testing.T) {
	wh := testutil.NewMockWarehouse()
	wh.SeedGapRows(42, testutil.SampleGapRows())
	pub := newPipeline(wh)
	ctx := context.Background()

	// Three consecutive weekly runs, each triggered on a different weekday.
	days := []string{"2025-05-26", "2025-06-04", "2025-06-13"}
	for _, day := range days {
		res := pub.Publish(ctx, publisher.Request{TenantID: 42, Week: testutil.Week(t, day)})
		require.Equal(t, types.OutcomePublished, res.Outcome, "week %s", day)
	}

	runs, err := wh.ListRuns(ctx, 42, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// Weeks canonicalized to Mondays, newest first.
	assert.Equal(t, "2025-06-09", runs[0].SnapshotWeekStart.Format("2006-01-02"))
	assert.Equal(t, "2025-06-02", runs[1].SnapshotWeekStart.Format("2006-01-02"))
	assert.Equal(t, "2025-05-26", runs[2].SnapshotWeekStart.Format("2006-01-02"))

	// A retrigger later the same week is absorbed.
	res := pub.Publish(ctx, publisher.Request{TenantID: 42, Week: testutil.Week(t, "2025-06-12")})
	assert.Equal(t, types.OutcomeAlreadyPublished, res.Outcome)
	runs, err = wh.ListRuns(ctx, 42, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestPipeline_ConcurrentPublishersOneWinner(t *testing.T) {
	wh := testutil.NewMockWarehouse()
	wh.SeedGapRows(42, testutil.SampleGapRows())
	ctx := context.Background()
	week := testutil.Week(t, "2025-06-09")

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]types.PublishResult, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Each attempt gets its own pipeline, as separate processes would.
			results[i] = newPipeline(wh).Publish(ctx, publisher.Request{TenantID: 42, Week: week})
		}(i)
	}
	wg.Wait()

	published := 0
	for _, res := range results {
		switch res.Outcome {
		case types.OutcomePublished:
			published++
		case types.OutcomeAlreadyPublished, types.OutcomeFailed:
			// Losers either skip on the existing run or abort on a detected
			// concurrent recompute; neither writes anything.
		default:
			t.Fatalf("unexpected outcome %s", res.Outcome)
		}
	}
	assert.Equal(t, 1, published, "exactly one attempt publishes")

	runs, err := wh.ListRuns(ctx, 42, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	n, err := wh.CountDetails(ctx, 42, week)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "detail rows written exactly once")
}

func TestPipeline_TenantsAreIndependent(t *testing.T) {
	wh := testutil.NewMockWarehouse()
	wh.SeedGapRows(42, testutil.SampleGapRows())
	wh.SeedGapRows(7, testutil.SampleGapRows()[:1])
	pub := newPipeline(wh)
	ctx := context.Background()
	week := testutil.Week(t, "2025-06-09")

	res := pub.Publish(ctx, publisher.Request{TenantID: 42, Week: week})
	require.Equal(t, types.OutcomePublished, res.Outcome)
	assert.Equal(t, 3, res.RowCount)

	res = pub.Publish(ctx, publisher.Request{TenantID: 7, Week: week})
	require.Equal(t, types.OutcomePublished, res.Outcome)
	assert.Equal(t, 1, res.RowCount)

	// Tenant with no materialized rows publishes nothing.
	res = pub.Publish(ctx, publisher.Request{TenantID: 9, Week: week})
	assert.Equal(t, types.OutcomeNothingToPublish, res.Outcome)
}

func TestPipeline_FailedWeekLeavesNoTrace(t *testing.T) {
	wh := testutil.NewMockWarehouse()
	wh.SeedGapRows(42, testutil.SampleGapRows())
	wh.RefreshErr = assert.AnError
	pub := newPipeline(wh)
	ctx := context.Background()
	week := testutil.Week(t, "2025-06-09")

	res := pub.Publish(ctx, publisher.Request{TenantID: 42, Week: week})
	require.Equal(t, types.OutcomeFailed, res.Outcome)

	runs, err := wh.ListRuns(ctx, 42, 0)
	require.NoError(t, err)
	assert.Empty(t, runs, "failed publish writes nothing")

	// Warehouse recovers; the same week publishes cleanly.
	wh.RefreshErr = nil
	res = newPipeline(wh).Publish(ctx, publisher.Request{TenantID: 42, Week: week})
	assert.Equal(t, types.OutcomePublished, res.Outcome)

	// The failed week never entered the run history, so the published
	// timeline stays gap-free for streak purposes.
	runs, err = wh.ListRuns(ctx, 42, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].RunAt.IsZero())
}

func TestPipeline_PinnedClockDefaultsWeek(t *testing.T) {
	wh := testutil.NewMockWarehouse()
	wh.SeedGapRows(42, testutil.SampleGapRows())
	pub := newPipeline(wh)

	res := pub.Publish(context.Background(), publisher.Request{
		TenantID: 42,
		Now:      time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC), // Sunday night
	})
	require.Equal(t, types.OutcomePublished, res.Outcome)
	assert.Equal(t, "2025-06-09", res.Week.Format("2006-01-02"))
}
