// Package store persists aggregation run summaries and per-source metric
// snapshots so runs can be reviewed and source health tracked over time.
package store

import (
	"context"

	"github.com/sells-group/prospector/internal/aggregate"
	"github.com/sells-group/prospector/internal/source"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Location string `json:"location,omitempty"`
	Industry string `json:"industry,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the run log.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, run aggregate.RunSummary) error
	GetRun(ctx context.Context, runID string) (*aggregate.RunSummary, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]aggregate.RunSummary, error)

	// Source snapshots
	SaveSourceSnapshots(ctx context.Context, runID string, snaps []source.MetricsSnapshot) error
	ListSourceSnapshots(ctx context.Context, runID string) ([]source.MetricsSnapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
