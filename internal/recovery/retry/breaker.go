package retry

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// BreakerState is the circuit breaker position.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig holds the breaker thresholds.
type BreakerConfig struct {
	// Threshold is the consecutive-failure count that opens the circuit.
	Threshold int
	// CoolDown is how long the circuit stays open before a probe is allowed.
	CoolDown time.Duration
}

// DefaultBreakerConfig opens after 5 consecutive failures and probes after
// one minute.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 5, CoolDown: time.Minute}
}

// Breaker is a per-operation circuit breaker. Transitions:
// Closed→Open on threshold breach, Open→HalfOpen after cool-down (evaluated
// lazily inside Allow), HalfOpen→Closed on success, HalfOpen→Open on
// failure. Safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	cfg         BreakerConfig
	clock       clock.PassiveClock
	state       BreakerState
	consecutive int
	lastFailure time.Time
}

// NewBreaker creates a closed breaker. A nil clock falls back to real time.
func NewBreaker(cfg BreakerConfig, c clock.PassiveClock) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultBreakerConfig().Threshold
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = DefaultBreakerConfig().CoolDown
	}
	if c == nil {
		c = clock.RealClock{}
	}
	return &Breaker{cfg: cfg, clock: c, state: StateClosed}
}

// Allow reports whether a call may proceed. While open it advances to
// half-open once the cool-down has elapsed, so a breaker flip is visible to
// every concurrent caller on their next check.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.clock.Since(b.lastFailure) >= b.cfg.CoolDown {
			b.state = StateHalfOpen
			return true
		}
		return false
	}
	return true
}

// RecordSuccess resets the breaker. A half-open probe that succeeds closes
// the circuit and zeroes the consecutive-failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive = 0
	b.state = StateClosed
}

// RecordFailure counts a failure and opens the circuit on threshold breach.
// A failure during a half-open probe reverts straight to open.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive++
	b.lastFailure = b.clock.Now()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
	case StateClosed:
		if b.consecutive >= b.cfg.Threshold {
			b.state = StateOpen
		}
	}
}

// State returns the current position without advancing it.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure streak.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutive
}
