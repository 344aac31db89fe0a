package monitoring

import (
	"time"

	"github.com/sells-group/prospector/internal/aggregate"
	"github.com/sells-group/prospector/internal/source"
)

// Snapshot is a point-in-time view of engine health: per-source grades plus
// run-level totals over the supplied history.
type Snapshot struct {
	Sources []SourceHealth `json:"sources"`

	Healthy   int `json:"healthy"`
	Degraded  int `json:"degraded"`
	Unhealthy int `json:"unhealthy"`
	Idle      int `json:"idle"`

	RunsTotal       int           `json:"runs_total"`
	RecordsFetched  int           `json:"records_fetched"`
	EntitiesFound   int           `json:"entities_found"`
	AvgRunDuration  time.Duration `json:"avg_run_duration"`
	AvgYieldPerRun  float64       `json:"avg_yield_per_run"`
	LookbackApplied time.Duration `json:"lookback_applied,omitempty"`
	CollectedAt     time.Time     `json:"collected_at"`
}

// Collector assembles snapshots from orchestrator metrics and run history.
type Collector struct {
	checker  *Checker
	lookback time.Duration
}

// NewCollector creates a collector. A zero lookback includes all runs.
func NewCollector(checker *Checker, lookback time.Duration) *Collector {
	if checker == nil {
		checker = NewChecker(DefaultThresholds())
	}
	return &Collector{checker: checker, lookback: lookback}
}

// Collect grades the given source snapshots and folds the run summaries
// within the lookback window into engine-level totals.
func (c *Collector) Collect(snaps []source.MetricsSnapshot, runs []aggregate.RunSummary) *Snapshot {
	now := time.Now().UTC()
	snap := &Snapshot{
		Sources:         c.checker.Check(snaps),
		LookbackApplied: c.lookback,
		CollectedAt:     now,
	}

	for _, h := range snap.Sources {
		switch h.Status {
		case StatusHealthy:
			snap.Healthy++
		case StatusDegraded:
			snap.Degraded++
		case StatusUnhealthy:
			snap.Unhealthy++
		case StatusIdle:
			snap.Idle++
		}
	}

	cutoff := time.Time{}
	if c.lookback > 0 {
		cutoff = now.Add(-c.lookback)
	}

	var totalDuration time.Duration
	for _, r := range runs {
		if !cutoff.IsZero() && r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		snap.RecordsFetched += r.RecordsFetched
		snap.EntitiesFound += r.UniqueEntities
		totalDuration += r.Duration
	}
	if snap.RunsTotal > 0 {
		snap.AvgRunDuration = totalDuration / time.Duration(snap.RunsTotal)
		snap.AvgYieldPerRun = float64(snap.EntitiesFound) / float64(snap.RunsTotal)
	}

	return snap
}
