package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the state of one source's circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets fetches through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects fetches until the cooldown passes.
	BreakerOpen
	// BreakerHalfOpen lets a probe fetch test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrSourceTripped is returned when a fetch is rejected by an open breaker.
var ErrSourceTripped = eris.New("source circuit breaker is open")

// BreakerConfig controls when a source's breaker trips and recovers.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. Default: 3 — a source that failed three fetches in a row is
	// skipped for the cooldown rather than retried within the run.
	FailureThreshold int

	// Cooldown is how long the breaker stays open. Default: 60s.
	Cooldown time.Duration

	// OnStateChange fires on every transition.
	OnStateChange func(source string, from, to BreakerState)
}

// DefaultBreakerConfig returns the orchestrator's breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		Cooldown:         60 * time.Second,
	}
}

// Breaker is a circuit breaker for a single source.
type Breaker struct {
	source string
	cfg    BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time

	nowFunc func() time.Time
}

func newBreaker(source string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	return &Breaker{source: source, cfg: cfg, state: BreakerClosed, nowFunc: time.Now}
}

// Allow reports whether a fetch may proceed, transitioning open breakers to
// half-open once the cooldown has passed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.nowFunc().Sub(b.lastFailure) >= b.cfg.Cooldown {
			b.transition(BreakerHalfOpen)
			return nil
		}
		return ErrSourceTripped
	default:
		return nil
	}
}

// Record feeds the outcome of a fetch back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != BreakerClosed {
			b.transition(BreakerClosed)
		}
		b.failures = 0
		return
	}

	b.failures++
	b.lastFailure = b.nowFunc()

	switch b.state {
	case BreakerClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		// Failed probe reopens immediately.
		b.transition(BreakerOpen)
	}
}

// State returns the current state, accounting for an elapsed cooldown.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.nowFunc().Sub(b.lastFailure) >= b.cfg.Cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.source, from, to)
	}
}

// SourceBreakers holds one breaker per source, created on demand.
type SourceBreakers struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      BreakerConfig
}

// NewSourceBreakers creates a per-source breaker registry.
func NewSourceBreakers(cfg BreakerConfig) *SourceBreakers {
	return &SourceBreakers{breakers: make(map[string]*Breaker), cfg: cfg}
}

// Get returns the breaker for a source, creating it if needed.
func (sb *SourceBreakers) Get(source string) *Breaker {
	sb.mu.RLock()
	b, ok := sb.breakers[source]
	sb.mu.RUnlock()
	if ok {
		return b
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	if b, ok = sb.breakers[source]; ok {
		return b
	}
	b = newBreaker(source, sb.cfg)
	sb.breakers[source] = b
	return b
}

// States snapshots every breaker's state for observability.
func (sb *SourceBreakers) States() map[string]BreakerState {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	out := make(map[string]BreakerState, len(sb.breakers))
	for name, b := range sb.breakers {
		out[name] = b.State()
	}
	return out
}
