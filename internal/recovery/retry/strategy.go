// Package retry implements per-operation retry strategies with exponential
// backoff, jitter and circuit breaking, plus the registry that owns one
// strategy per named operation.
package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/ductran/recoverd/internal/core/domain"
)

// Config holds the tunables of one strategy. Zero fields are filled from
// DefaultConfig.
type Config struct {
	BaseDelay       time.Duration `yaml:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	MaxAttempts     int           `yaml:"max_attempts"`
	BackoffExponent float64       `yaml:"backoff_exponent"`
	JitterFactor    float64       `yaml:"jitter_factor"`
	Breaker         BreakerConfig `yaml:"breaker"`
}

// DefaultConfig is the fallback for operations with no registered strategy.
func DefaultConfig() Config {
	return Config{
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		MaxAttempts:     3,
		BackoffExponent: 2.0,
		JitterFactor:    0.1,
		Breaker:         DefaultBreakerConfig(),
	}
}

// NetworkConfig suits chatty network operations: more attempts, shorter
// base delay, wider jitter to break up retry storms.
func NetworkConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseDelay = 500 * time.Millisecond
	cfg.MaxAttempts = 5
	cfg.JitterFactor = 0.3
	return cfg
}

// QuotaConfig suits rate-limit and quota failures: very few attempts with
// long, conservative delays.
func QuotaConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseDelay = 30 * time.Second
	cfg.MaxDelay = 5 * time.Minute
	cfg.MaxAttempts = 2
	return cfg
}

// StoreConfig suits persistence operations.
func StoreConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 4
	return cfg
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BackoffExponent <= 1 {
		c.BackoffExponent = def.BackoffExponent
	}
	if c.JitterFactor < 0 || c.JitterFactor >= 1 {
		c.JitterFactor = def.JitterFactor
	}
	return c
}

// Metrics counts attempt outcomes for one operation. Process-wide lifetime;
// reset only through Registry.ResetMetrics.
type Metrics struct {
	TotalAttempts      int           `json:"total_attempts"`
	SuccessfulAttempts int           `json:"successful_attempts"`
	FailedAttempts     int           `json:"failed_attempts"`
	TotalDelay         time.Duration `json:"total_delay"`
	LastSuccess        time.Time     `json:"last_success,omitzero"`
	LastFailure        time.Time     `json:"last_failure,omitzero"`
}

// SuccessRate is successes over total, zero when nothing was recorded.
func (m Metrics) SuccessRate() float64 {
	if m.TotalAttempts == 0 {
		return 0
	}
	return float64(m.SuccessfulAttempts) / float64(m.TotalAttempts)
}

// Strategy decides whether and when a named operation is retried. One
// instance per operation name, shared by every concurrent caller; a single
// mutex covers the metrics and the embedded breaker state.
type Strategy struct {
	mu sync.Mutex

	name    string
	cfg     Config
	clock   clock.PassiveClock
	breaker *Breaker
	metrics Metrics
	rand    *rand.Rand
}

// NewStrategy builds a strategy for one operation. A nil clock falls back
// to real time.
func NewStrategy(name string, cfg Config, c clock.PassiveClock) *Strategy {
	cfg = cfg.withDefaults()
	if c == nil {
		c = clock.RealClock{}
	}
	return &Strategy{
		name:    name,
		cfg:     cfg,
		clock:   c,
		breaker: NewBreaker(cfg.Breaker, c),
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name returns the operation name this strategy belongs to.
func (s *Strategy) Name() string { return s.name }

// Config returns a copy of the effective configuration.
func (s *Strategy) Config() Config { return s.cfg }

// Allow reports whether the breaker currently admits an attempt at all.
// Checked before the first invocation so an open circuit refuses the call
// without touching the underlying operation.
func (s *Strategy) Allow() bool {
	return s.breaker.Allow()
}

// ShouldRetry reports whether another attempt is allowed after the given
// 1-based attempt failed with the classified kind. Non-retryable kinds are
// refused unconditionally; an open breaker refuses until its cool-down
// elapses.
func (s *Strategy) ShouldRetry(attempt int, kind domain.FailureKind) bool {
	if attempt >= s.cfg.MaxAttempts {
		return false
	}
	if !kind.Retryable() {
		return false
	}
	return s.breaker.Allow()
}

// Delay computes the backoff before the given 1-based attempt is repeated:
// base * exponent^(attempt-1), capped at MaxDelay, then perturbed by
// ±JitterFactor of the computed value.
func (s *Strategy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(s.cfg.BaseDelay) * math.Pow(s.cfg.BackoffExponent, float64(attempt-1))
	if delay > float64(s.cfg.MaxDelay) {
		delay = float64(s.cfg.MaxDelay)
	}

	if s.cfg.JitterFactor > 0 {
		s.mu.Lock()
		jitter := delay * s.cfg.JitterFactor * (s.rand.Float64()*2 - 1)
		s.mu.Unlock()
		delay += jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// RecordAttempt updates the metrics and drives the breaker. A success while
// half-open closes the circuit and zeroes its failure streak.
func (s *Strategy) RecordAttempt(success bool) {
	s.mu.Lock()
	s.metrics.TotalAttempts++
	if success {
		s.metrics.SuccessfulAttempts++
		s.metrics.LastSuccess = s.clock.Now()
	} else {
		s.metrics.FailedAttempts++
		s.metrics.LastFailure = s.clock.Now()
	}
	s.mu.Unlock()

	if success {
		s.breaker.RecordSuccess()
	} else {
		s.breaker.RecordFailure()
	}
}

// AddDelay accounts backoff time actually spent waiting before a retry.
func (s *Strategy) AddDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.TotalDelay += d
}

// Metrics returns a snapshot of the counters.
func (s *Strategy) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// BreakerState exposes the breaker position for health reporting.
func (s *Strategy) BreakerState() BreakerState {
	return s.breaker.State()
}

func (s *Strategy) resetMetrics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = Metrics{}
}
