// Package aggregate drives a discovery run end to end: it walks the source
// registry in priority order, fetches with bounded timeouts and resilience,
// deduplicates records into entity groups, and emits consensus-validated
// entities once the target count is met or sources are exhausted.
package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospector/internal/consensus"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/internal/source"
)

// Orchestrator aggregates business records from every registered source
// into a deduplicated, confidence-scored entity set. Create one per
// registry; metrics and breaker state accumulate across runs.
type Orchestrator struct {
	registry *source.Registry
	opts     options
	breakers *resilience.SourceBreakers

	mu       sync.Mutex
	metrics  map[string]*source.Metrics
	limiters map[string]*rate.Limiter
}

// RunSummary describes one aggregation run for logging and the run log.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Location       string        `json:"location"`
	Industry       string        `json:"industry,omitempty"`
	TargetCount    int           `json:"target_count"`
	SourcesTried   int           `json:"sources_tried"`
	RecordsFetched int           `json:"records_fetched"`
	UniqueEntities int           `json:"unique_entities"`
	Returned       int           `json:"returned"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// NewOrchestrator creates an orchestrator over a registry.
func NewOrchestrator(registry *source.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		opts:     defaultOptions(),
		metrics:  make(map[string]*source.Metrics),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(&o.opts)
	}
	o.breakers = resilience.NewSourceBreakers(o.opts.breaker)
	return o
}

// FetchFromAllSources runs a discovery aggregation and returns up to
// targetCount resolved entities in discovery order. Source failures never
// surface here; the only error is a nonsensical target count. Cancelling
// ctx returns whatever has been assembled so far.
func (o *Orchestrator) FetchFromAllSources(ctx context.Context, targetCount int, location, industry string) ([]model.ResolvedEntity, error) {
	entities, _, err := o.Run(ctx, targetCount, location, industry)
	return entities, err
}

// Run is FetchFromAllSources plus the run summary the CLI and run log use.
func (o *Orchestrator) Run(ctx context.Context, targetCount int, location, industry string) ([]model.ResolvedEntity, *RunSummary, error) {
	if targetCount <= 0 {
		return nil, nil, eris.Errorf("aggregate: target count must be positive, got %d", targetCount)
	}

	summary := &RunSummary{
		RunID:       uuid.NewString(),
		Location:    location,
		Industry:    industry,
		TargetCount: targetCount,
		StartedAt:   time.Now().UTC(),
	}
	log := zap.L().With(zap.String("run_id", summary.RunID))

	entries := o.registry.GetSourcesForIndustry(industry)
	if len(entries) == 0 {
		// Degenerate but valid: the caller gets an empty set, not a crash.
		log.Error("no enabled sources eligible for run",
			zap.String("industry", industry),
		)
		summary.Duration = time.Since(summary.StartedAt)
		return []model.ResolvedEntity{}, summary, nil
	}

	log.Info("starting aggregation run",
		zap.Int("target", targetCount),
		zap.String("location", location),
		zap.String("industry", industry),
		zap.Int("sources", len(entries)),
	)

	index := newDedupIndex(o.opts.strict)
	if o.opts.concurrency > 1 {
		o.scanConcurrent(ctx, entries, targetCount, location, industry, index, summary)
	} else {
		o.scanSequential(ctx, entries, targetCount, location, industry, index, summary)
	}

	entities := make([]model.ResolvedEntity, 0, len(index.groups))
	for _, g := range index.groups {
		if len(entities) >= targetCount {
			break
		}
		entities = append(entities, consensus.Validate(*g))
	}

	summary.UniqueEntities = index.unique()
	summary.Returned = len(entities)
	summary.Duration = time.Since(summary.StartedAt)

	log.Info("aggregation run complete",
		zap.Int("unique", summary.UniqueEntities),
		zap.Int("returned", summary.Returned),
		zap.Int("records_fetched", summary.RecordsFetched),
		zap.Int("sources_tried", summary.SourcesTried),
		zap.Duration("duration", summary.Duration),
	)

	return entities, summary, nil
}

// scanSequential walks adapters in priority order with a single-writer
// index: deterministic given deterministic adapters.
func (o *Orchestrator) scanSequential(ctx context.Context, entries []*source.Entry, targetCount int, location, industry string, index *dedupIndex, summary *RunSummary) {
	for _, entry := range entries {
		if ctx.Err() != nil {
			zap.L().Info("run cancelled, returning partial results",
				zap.String("run_id", summary.RunID),
			)
			return
		}
		if index.unique() >= targetCount {
			return
		}

		remaining := targetCount - index.unique()
		records := o.fetchOne(ctx, entry, source.Query{
			Location:   location,
			Industry:   industry,
			MaxResults: min(remaining*overFetchFactor, maxPerRequest),
		})
		summary.SourcesTried++
		summary.RecordsFetched += len(records)

		for _, r := range records {
			index.insert(r)
		}
	}
}

// scanConcurrent fans adapter fetches out across a bounded worker group.
// The index is mutex-guarded; discovery order follows fetch completion, so
// output order is not reproducible across runs in this mode.
func (o *Orchestrator) scanConcurrent(ctx context.Context, entries []*source.Entry, targetCount int, location, industry string, index *dedupIndex, summary *RunSummary) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.concurrency)

	for _, entry := range entries {
		mu.Lock()
		done := index.unique() >= targetCount
		remaining := targetCount - index.unique()
		mu.Unlock()
		if done || gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			records := o.fetchOne(gctx, entry, source.Query{
				Location:   location,
				Industry:   industry,
				MaxResults: min(max(remaining, 1)*overFetchFactor, maxPerRequest),
			})

			mu.Lock()
			defer mu.Unlock()
			summary.SourcesTried++
			summary.RecordsFetched += len(records)
			for _, r := range records {
				index.insert(r)
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are metrics
}

// fetchOne invokes a single adapter behind its circuit breaker, rate limit,
// retry policy, and timeout. Every failure mode — open breaker, panic,
// error, timeout — degrades to zero records and one counted error.
func (o *Orchestrator) fetchOne(ctx context.Context, entry *source.Entry, q source.Query) []model.RawRecord {
	name := entry.Adapter.Name()
	log := zap.L().With(zap.String("source", name))
	breaker := o.breakers.Get(name)

	if err := breaker.Allow(); err != nil {
		log.Warn("source skipped, circuit open")
		o.metricsFor(name).Update(0, 0, 1)
		return nil
	}

	if lim := o.limiterFor(name); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			if ctx.Err() == nil {
				o.metricsFor(name).Update(0, 0, 1)
			}
			return nil
		}
	}

	retry := o.opts.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(name)
	}

	start := time.Now()
	records, err := resilience.FetchWithRetry(ctx, retry, func(ctx context.Context) (recs []model.RawRecord, err error) {
		defer func() {
			// A panicking adapter is just a failed fetch.
			if r := recover(); r != nil {
				err = eris.Errorf("source %s panicked: %v", name, r)
			}
		}()
		fctx, cancel := context.WithTimeout(ctx, o.opts.fetchTimeout)
		defer cancel()
		return entry.Adapter.FetchBusinesses(fctx, q)
	})
	elapsed := time.Since(start)

	if err != nil && ctx.Err() != nil {
		// The run was cancelled, not the source failing; no breaker strike,
		// no error counted.
		log.Debug("fetch abandoned, run cancelled")
		return nil
	}

	breaker.Record(err)
	if err != nil {
		log.Warn("source fetch failed",
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		o.metricsFor(name).Update(0, elapsed, 1)
		return nil
	}

	log.Debug("source fetch complete",
		zap.Int("records", len(records)),
		zap.Duration("elapsed", elapsed),
	)
	o.metricsFor(name).Update(len(records), elapsed, 0)
	return records
}

func (o *Orchestrator) metricsFor(name string) *source.Metrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.metrics[name]
	if !ok {
		m = &source.Metrics{}
		o.metrics[name] = m
	}
	return m
}

func (o *Orchestrator) limiterFor(name string) *rate.Limiter {
	if o.opts.rateLimit <= 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	lim, ok := o.limiters[name]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(o.opts.rateLimit), 1)
		o.limiters[name] = lim
	}
	return lim
}

// GetSourceMetrics snapshots every source's counters in registry priority
// order. Sources never tried in any run report zeroed counters.
func (o *Orchestrator) GetSourceMetrics() []source.MetricsSnapshot {
	var out []source.MetricsSnapshot
	for _, name := range o.registry.Names() {
		snap := o.metricsFor(name).Snapshot()
		snap.Source = name
		out = append(out, snap)
	}
	return out
}

// BreakerStates exposes per-source circuit breaker states for the health
// endpoint and CLI.
func (o *Orchestrator) BreakerStates() map[string]resilience.BreakerState {
	return o.breakers.States()
}
