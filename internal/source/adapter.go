// Package source defines the adapter contract every business data source
// implements, per-adapter health metrics, and the prioritized registry the
// orchestrator draws adapters from.
package source

import (
	"context"

	"github.com/sells-group/prospector/internal/model"
)

// Query describes one fetch request against an adapter.
type Query struct {
	Location   string
	Industry   string
	MaxResults int
}

// Adapter is the contract for a single business data source: a scraper, an
// API client, or a static seed list. Adapters may perform network I/O inside
// FetchBusinesses but must not mutate any shared state; health bookkeeping
// belongs to the orchestrator.
type Adapter interface {
	// Name identifies the adapter; it is the SourceID stamped on every
	// record the adapter produces.
	Name() string

	// Priority ranks the adapter 0-100; higher priority sources are trusted
	// more and tried first.
	Priority() int

	// FetchBusinesses returns raw records for the query. Adapters should
	// swallow internal errors and return what they have; any error returned
	// here is counted as a failed attempt by the orchestrator, never
	// propagated to the engine's caller.
	FetchBusinesses(ctx context.Context, q Query) ([]model.RawRecord, error)

	// ValidateConfig reports whether the adapter is configured well enough
	// to attempt a fetch (API key present, seed file readable, ...).
	ValidateConfig() bool

	// IsAvailable reports whether the adapter should be tried right now.
	// Most adapters delegate to ValidateConfig.
	IsAvailable() bool
}

// Priority bands, descending by expected data quality. Adapters pick a value
// inside their band; the registry can override per deployment.
const (
	PriorityCuratedSeed  = 100 // curated seed lists
	PriorityCommercial   = 90  // paid/commercial directories (90-99)
	PriorityGovernment   = 70  // government databases (70-89)
	PriorityAssociation  = 50  // industry associations (50-69)
	PriorityFreeScraper  = 30  // free scrapers and APIs (30-49)
	PrioritySearchEngine = 10  // generic search engines (10-29)
)
