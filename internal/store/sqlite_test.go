package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/aggregate"
	"github.com/sells-group/prospector/internal/source"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleRun(id, location string) aggregate.RunSummary {
	return aggregate.RunSummary{
		RunID:          id,
		Location:       location,
		Industry:       "manufacturing",
		TargetCount:    25,
		SourcesTried:   3,
		RecordsFetched: 60,
		UniqueEntities: 31,
		Returned:       25,
		StartedAt:      time.Now().UTC().Truncate(time.Second),
		Duration:       1500 * time.Millisecond,
	}
}

func TestSQLite_SaveAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	want := sampleRun("run-1", "Hamilton, ON")
	require.NoError(t, st.SaveRun(ctx, want))

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Location, got.Location)
	assert.Equal(t, want.TargetCount, got.TargetCount)
	assert.Equal(t, want.UniqueEntities, got.UniqueEntities)
	assert.Equal(t, want.Duration, got.Duration)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
}

func TestSQLite_GetRun_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetRun(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ListRuns_FilterAndOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	older := sampleRun("run-old", "Hamilton, ON")
	older.StartedAt = older.StartedAt.Add(-time.Hour)
	require.NoError(t, st.SaveRun(ctx, older))
	require.NoError(t, st.SaveRun(ctx, sampleRun("run-new", "Hamilton, ON")))
	require.NoError(t, st.SaveRun(ctx, sampleRun("run-other", "Guelph, ON")))

	runs, err := st.ListRuns(ctx, RunFilter{Location: "Hamilton, ON"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].RunID)
	assert.Equal(t, "run-old", runs[1].RunID)

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLite_SourceSnapshots_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRun(ctx, sampleRun("run-1", "Hamilton, ON")))

	snaps := []source.MetricsSnapshot{
		{Source: "gov_registry", Runs: 2, RecordsFound: 40, RecordsPerRun: 20},
		{Source: "seed_list", Runs: 1, Errors: 1, ErrorRate: 1.0},
	}
	require.NoError(t, st.SaveSourceSnapshots(ctx, "run-1", snaps))

	got, err := st.ListSourceSnapshots(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "gov_registry", got[0].Source)
	assert.Equal(t, 40, got[0].RecordsFound)
	assert.Equal(t, 1.0, got[1].ErrorRate)
}

func TestSQLite_SourceSnapshots_ReplaceOnSameRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRun(ctx, sampleRun("run-1", "Hamilton, ON")))

	require.NoError(t, st.SaveSourceSnapshots(ctx, "run-1", []source.MetricsSnapshot{
		{Source: "seed_list", Runs: 1},
	}))
	require.NoError(t, st.SaveSourceSnapshots(ctx, "run-1", []source.MetricsSnapshot{
		{Source: "seed_list", Runs: 2, RecordsFound: 10},
	}))

	got, err := st.ListSourceSnapshots(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Runs)
	assert.Equal(t, 10, got[0].RecordsFound)
}
