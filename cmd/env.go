package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/aggregate"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/internal/source"
	"github.com/sells-group/prospector/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "prospector.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// buildRegistry assembles the source registry from configured seed files and
// applies the optional per-source YAML overrides.
func buildRegistry() (*source.Registry, error) {
	reg := source.NewRegistry()

	for _, sf := range cfg.Sources.SeedFiles {
		priority := sf.Priority
		if priority == 0 {
			priority = source.PriorityCuratedSeed
		}
		adapter, err := source.LoadSeedAdapter(sf.Name, priority, sf.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "load seed source %s", sf.Name)
		}
		reg.Register(adapter)
		zap.L().Info("seed source registered",
			zap.String("source", sf.Name),
			zap.String("path", sf.Path),
		)
	}

	if cfg.Sources.RegistryPath != "" {
		rc, err := source.LoadRegistryConfig(cfg.Sources.RegistryPath)
		switch {
		case err == nil:
			reg.ApplyConfig(rc)
		case os.IsNotExist(eris.Cause(err)):
			// Override file is optional until the first sources toggle.
			zap.L().Debug("registry overrides not found",
				zap.String("path", cfg.Sources.RegistryPath),
			)
		default:
			return nil, err
		}
	}

	return reg, nil
}

func newOrchestrator(reg *source.Registry) *aggregate.Orchestrator {
	opts := []aggregate.Option{
		aggregate.WithFetchTimeout(cfg.Aggregator.FetchTimeout()),
		aggregate.WithConcurrency(cfg.Aggregator.Concurrency),
		aggregate.WithRateLimit(cfg.Aggregator.RateLimitPerSec),
	}
	if cfg.Aggregator.StrictMatching {
		opts = append(opts, aggregate.WithStrictMatching())
	}
	if cfg.Aggregator.RetryAttempts > 0 {
		retry := resilience.DefaultRetryPolicy()
		retry.MaxAttempts = cfg.Aggregator.RetryAttempts
		opts = append(opts, aggregate.WithRetryPolicy(retry))
	}
	return aggregate.NewOrchestrator(reg, opts...)
}
