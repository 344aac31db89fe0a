package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/aggregate"
	"github.com/sells-group/prospector/internal/source"
)

func TestChecker_Grades(t *testing.T) {
	c := NewChecker(DefaultThresholds())

	tests := []struct {
		name string
		snap source.MetricsSnapshot
		want Status
	}{
		{"never tried", source.MetricsSnapshot{Source: "a"}, StatusIdle},
		{"one run only", source.MetricsSnapshot{Source: "b", Runs: 1, Errors: 1, ErrorRate: 1.0}, StatusHealthy},
		{"clean", source.MetricsSnapshot{Source: "c", Runs: 5, RecordsFound: 50, RecordsPerRun: 10}, StatusHealthy},
		{"degraded errors", source.MetricsSnapshot{Source: "d", Runs: 10, Errors: 4, RecordsFound: 30, ErrorRate: 0.4}, StatusDegraded},
		{"unhealthy errors", source.MetricsSnapshot{Source: "e", Runs: 10, Errors: 8, RecordsFound: 2, ErrorRate: 0.8}, StatusUnhealthy},
		{"slow", source.MetricsSnapshot{Source: "f", Runs: 4, RecordsFound: 8, AvgFetchTime: 30 * time.Second}, StatusDegraded},
		{"zero yield", source.MetricsSnapshot{Source: "g", Runs: 5}, StatusDegraded},
	}

	for _, tt := range tests {
		got := c.Check([]source.MetricsSnapshot{tt.snap})
		require.Len(t, got, 1, tt.name)
		assert.Equal(t, tt.want, got[0].Status, tt.name)
	}
}

func TestCollector_Collect(t *testing.T) {
	col := NewCollector(NewChecker(DefaultThresholds()), 0)

	snaps := []source.MetricsSnapshot{
		{Source: "seed", Runs: 3, RecordsFound: 30, RecordsPerRun: 10},
		{Source: "flaky", Runs: 10, Errors: 9, ErrorRate: 0.9},
		{Source: "new"},
	}
	runs := []aggregate.RunSummary{
		{RunID: "r1", RecordsFetched: 40, UniqueEntities: 25, Duration: 2 * time.Second, StartedAt: time.Now().UTC()},
		{RunID: "r2", RecordsFetched: 20, UniqueEntities: 15, Duration: 4 * time.Second, StartedAt: time.Now().UTC()},
	}

	got := col.Collect(snaps, runs)
	assert.Equal(t, 1, got.Healthy)
	assert.Equal(t, 1, got.Unhealthy)
	assert.Equal(t, 1, got.Idle)
	assert.Equal(t, 2, got.RunsTotal)
	assert.Equal(t, 60, got.RecordsFetched)
	assert.Equal(t, 40, got.EntitiesFound)
	assert.Equal(t, 3*time.Second, got.AvgRunDuration)
	assert.Equal(t, 20.0, got.AvgYieldPerRun)
}

func TestCollector_LookbackFiltersOldRuns(t *testing.T) {
	col := NewCollector(nil, time.Hour)

	runs := []aggregate.RunSummary{
		{RunID: "old", StartedAt: time.Now().UTC().Add(-2 * time.Hour), UniqueEntities: 99},
		{RunID: "new", StartedAt: time.Now().UTC(), UniqueEntities: 5},
	}

	got := col.Collect(nil, runs)
	assert.Equal(t, 1, got.RunsTotal)
	assert.Equal(t, 5, got.EntitiesFound)
}
