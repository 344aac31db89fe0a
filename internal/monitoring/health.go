// Package monitoring evaluates source health from the orchestrator's
// per-source metrics and assembles run-level snapshots for the CLI and the
// status endpoint.
package monitoring

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/source"
)

// Status grades one source's recent behavior.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	// StatusIdle marks sources that have not been tried yet.
	StatusIdle Status = "idle"
)

// SourceHealth is the checker's verdict for one source.
type SourceHealth struct {
	Source        string        `json:"source"`
	Status        Status        `json:"status"`
	ErrorRate     float64       `json:"error_rate"`
	RecordsPerRun float64       `json:"records_per_run"`
	AvgFetchTime  time.Duration `json:"avg_fetch_time"`
	LastRun       time.Time     `json:"last_run,omitzero"`
	Reasons       []string      `json:"reasons,omitempty"`
}

// Thresholds configures when a source is graded down.
type Thresholds struct {
	// DegradedErrorRate marks a source degraded at or above this error
	// rate. Default: 0.3.
	DegradedErrorRate float64
	// UnhealthyErrorRate marks a source unhealthy. Default: 0.7.
	UnhealthyErrorRate float64
	// SlowFetch flags sources whose average fetch exceeds this. Default: 20s.
	SlowFetch time.Duration
	// MinRuns is how many attempts a source needs before grading; below
	// it the verdict stays healthy to avoid judging on one bad fetch.
	// Default: 2.
	MinRuns int
}

// DefaultThresholds returns the grading defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DegradedErrorRate:  0.3,
		UnhealthyErrorRate: 0.7,
		SlowFetch:          20 * time.Second,
		MinRuns:            2,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	if t.DegradedErrorRate <= 0 {
		t.DegradedErrorRate = 0.3
	}
	if t.UnhealthyErrorRate <= 0 {
		t.UnhealthyErrorRate = 0.7
	}
	if t.SlowFetch <= 0 {
		t.SlowFetch = 20 * time.Second
	}
	if t.MinRuns <= 0 {
		t.MinRuns = 2
	}
	return t
}

// Checker grades sources against thresholds.
type Checker struct {
	thresholds Thresholds
}

// NewChecker creates a checker; zero-valued thresholds fall back to defaults.
func NewChecker(t Thresholds) *Checker {
	return &Checker{thresholds: t.withDefaults()}
}

// Check grades every source snapshot. Unhealthy sources are logged at warn
// level so a degrading scraper shows up without anyone polling the CLI.
func (c *Checker) Check(snaps []source.MetricsSnapshot) []SourceHealth {
	out := make([]SourceHealth, 0, len(snaps))
	for _, s := range snaps {
		h := c.grade(s)
		if h.Status == StatusUnhealthy {
			zap.L().Warn("source unhealthy",
				zap.String("source", h.Source),
				zap.Float64("error_rate", h.ErrorRate),
				zap.Strings("reasons", h.Reasons),
			)
		}
		out = append(out, h)
	}
	return out
}

func (c *Checker) grade(s source.MetricsSnapshot) SourceHealth {
	h := SourceHealth{
		Source:        s.Source,
		Status:        StatusHealthy,
		ErrorRate:     s.ErrorRate,
		RecordsPerRun: s.RecordsPerRun,
		AvgFetchTime:  s.AvgFetchTime,
		LastRun:       s.LastRun,
	}

	if s.Runs == 0 {
		h.Status = StatusIdle
		return h
	}
	if s.Runs < c.thresholds.MinRuns {
		return h
	}

	switch {
	case s.ErrorRate >= c.thresholds.UnhealthyErrorRate:
		h.Status = StatusUnhealthy
		h.Reasons = append(h.Reasons, fmt.Sprintf("error rate %.0f%%", s.ErrorRate*100))
	case s.ErrorRate >= c.thresholds.DegradedErrorRate:
		h.Status = StatusDegraded
		h.Reasons = append(h.Reasons, fmt.Sprintf("error rate %.0f%%", s.ErrorRate*100))
	}

	if s.AvgFetchTime >= c.thresholds.SlowFetch {
		if h.Status == StatusHealthy {
			h.Status = StatusDegraded
		}
		h.Reasons = append(h.Reasons, fmt.Sprintf("avg fetch %s", s.AvgFetchTime.Round(time.Millisecond)))
	}

	if s.RecordsFound == 0 && s.Errors == 0 {
		// Tried repeatedly, never errored, never produced anything: the
		// source is probably misconfigured rather than broken.
		if h.Status == StatusHealthy {
			h.Status = StatusDegraded
		}
		h.Reasons = append(h.Reasons, "no records across all runs")
	}

	return h
}
