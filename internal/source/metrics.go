package source

import (
	"sync"
	"time"
)

// Metrics tracks the health of one adapter across a run. In the default
// sequential orchestrator only one goroutine ever touches a Metrics value,
// but the mutex keeps the optional concurrent mode safe without a second
// implementation.
type Metrics struct {
	mu           sync.Mutex
	recordsFound int
	errors       int
	runs         int
	fetchTime    time.Duration
	lastRun      time.Time
}

// MetricsSnapshot is an immutable copy of an adapter's counters, suitable
// for JSON output and persistence.
type MetricsSnapshot struct {
	Source        string        `json:"source"`
	RecordsFound  int           `json:"records_found"`
	Errors        int           `json:"errors"`
	Runs          int           `json:"runs"`
	FetchTime     time.Duration `json:"fetch_time"`
	AvgFetchTime  time.Duration `json:"avg_fetch_time"`
	LastRun       time.Time     `json:"last_run,omitzero"`
	ErrorRate     float64       `json:"error_rate"`
	RecordsPerRun float64       `json:"records_per_run"`
}

// Update records the outcome of one fetch attempt, success or failure.
func (m *Metrics) Update(found int, elapsed time.Duration, errs int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordsFound += found
	m.errors += errs
	m.runs++
	m.fetchTime += elapsed
	m.lastRun = time.Now()
}

// Snapshot returns a copy of the current counters with derived rates filled
// in. Source is left for the caller to stamp.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		RecordsFound: m.recordsFound,
		Errors:       m.errors,
		Runs:         m.runs,
		FetchTime:    m.fetchTime,
		LastRun:      m.lastRun,
	}
	if m.runs > 0 {
		snap.AvgFetchTime = m.fetchTime / time.Duration(m.runs)
		snap.ErrorRate = float64(m.errors) / float64(m.runs)
		snap.RecordsPerRun = float64(m.recordsFound) / float64(m.runs)
	}
	return snap
}
