package aggregate

import (
	"time"

	"github.com/sells-group/prospector/internal/resilience"
)

const (
	defaultFetchTimeout = 45 * time.Second
	// overFetchFactor compensates for the duplicate rate expected when the
	// same businesses appear across sources.
	overFetchFactor = 2
	// maxPerRequest caps what is asked of a single adapter in one call.
	maxPerRequest = 100
)

type options struct {
	fetchTimeout time.Duration
	strict       bool
	concurrency  int
	rateLimit    float64 // per-source fetches per second; 0 disables
	retry        resilience.RetryPolicy
	breaker      resilience.BreakerConfig
}

func defaultOptions() options {
	return options{
		fetchTimeout: defaultFetchTimeout,
		concurrency:  1,
		retry:        resilience.DefaultRetryPolicy(),
		breaker:      resilience.DefaultBreakerConfig(),
	}
}

// Option configures an Orchestrator.
type Option func(*options)

// WithFetchTimeout bounds each adapter call. A hung scraper costs at most
// this long per attempt.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fetchTimeout = d
		}
	}
}

// WithStrictMatching disables fuzzy duplicate matching; only exact
// fingerprint collisions merge.
func WithStrictMatching() Option {
	return func(o *options) { o.strict = true }
}

// WithConcurrency fans adapter calls out across n workers. The default of 1
// processes adapters sequentially in priority order, which is what makes
// runs deterministic; raise it only when throughput matters more than
// reproducible output order.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithRateLimit throttles each source to rps fetches per second.
func WithRateLimit(rps float64) Option {
	return func(o *options) { o.rateLimit = rps }
}

// WithRetryPolicy overrides the per-fetch retry policy.
func WithRetryPolicy(p resilience.RetryPolicy) Option {
	return func(o *options) { o.retry = p }
}

// WithBreakerConfig overrides the per-source circuit breaker settings.
func WithBreakerConfig(cfg resilience.BreakerConfig) Option {
	return func(o *options) { o.breaker = cfg }
}
