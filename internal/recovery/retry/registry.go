package retry

import (
	"sort"
	"sync"

	"k8s.io/utils/clock"

	"github.com/ductran/recoverd/internal/core/domain"
)

// minRankedAttempts is the attempt floor below which an operation is too
// young to rank by success rate.
const minRankedAttempts = 5

// Registry owns one Strategy per operation name. It is the only component
// that creates or mutates strategies; inject it explicitly instead of
// sharing a process global.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]*Strategy
	implicit   map[string]bool
	defaults   map[domain.FailureKind]Config
	clock      clock.PassiveClock
}

// NewRegistry creates an empty registry. A nil clock falls back to real
// time; the clock is handed to every strategy it creates.
func NewRegistry(c clock.PassiveClock) *Registry {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Registry{
		strategies: make(map[string]*Strategy),
		implicit:   make(map[string]bool),
		defaults:   defaultKindConfigs(),
		clock:      c,
	}
}

// defaultKindConfigs is the typed kind→config table that replaces ad-hoc
// string dispatch for strategy defaults.
func defaultKindConfigs() map[domain.FailureKind]Config {
	return map[domain.FailureKind]Config{
		domain.FailureNetworkTimeout:      NetworkConfig(),
		domain.FailureConnectionReset:     NetworkConfig(),
		domain.FailureRateLimit:           QuotaConfig(),
		domain.FailureQuotaExceeded:       QuotaConfig(),
		domain.FailureQuotaExceededNotify: QuotaConfig(),
		domain.FailureStoreConnection:     StoreConfig(),
		domain.FailureDeadlock:            StoreConfig(),
	}
}

// ConfigForKind returns the default config for a failure kind, falling back
// to DefaultConfig for kinds with no dedicated entry.
func (r *Registry) ConfigForKind(kind domain.FailureKind) Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kindConfig(kind)
}

// GetOrCreate returns the strategy for name, creating one from cfg on first
// sight. Idempotent: later calls return the stored instance and ignore cfg.
func (r *Registry) GetOrCreate(name string, cfg Config) *Strategy {
	r.mu.RLock()
	s, ok := r.strategies[name]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.strategies[name]; ok {
		return s
	}
	s = NewStrategy(name, cfg, r.clock)
	r.strategies[name] = s
	r.implicit[name] = true
	return s
}

// AdoptKindDefaults swaps the strategy of name for one built from the
// kind-default table, once the failure class of an unregistered operation
// is first known. Only a strategy created implicitly and with no recorded
// attempts is swapped; explicit Register and accumulated history win.
// Returns the strategy for name either way.
func (r *Registry) AdoptKindDefaults(name string, kind domain.FailureKind) *Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.strategies[name]
	if !ok {
		s = NewStrategy(name, r.kindConfig(kind), r.clock)
		r.strategies[name] = s
		return s
	}
	if !r.implicit[name] || s.Metrics().TotalAttempts > 0 {
		return s
	}
	cfg, ok := r.defaults[kind]
	if !ok {
		return s
	}
	s = NewStrategy(name, cfg, r.clock)
	r.strategies[name] = s
	r.implicit[name] = false
	return s
}

func (r *Registry) kindConfig(kind domain.FailureKind) Config {
	if cfg, ok := r.defaults[kind]; ok {
		return cfg
	}
	return DefaultConfig()
}

// Get returns the strategy for name, or nil when none exists.
func (r *Registry) Get(name string) *Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strategies[name]
}

// Register installs a strategy with an explicit config, replacing any
// existing one for the name. Metrics of a replaced strategy are dropped.
func (r *Registry) Register(name string, cfg Config) *Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := NewStrategy(name, cfg, r.clock)
	r.strategies[name] = s
	r.implicit[name] = false
	return s
}

// Snapshot returns the metrics of one operation, or of all operations when
// name is empty.
func (r *Registry) Snapshot(name string) map[string]Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Metrics)
	if name != "" {
		if s, ok := r.strategies[name]; ok {
			out[name] = s.Metrics()
		}
		return out
	}
	for n, s := range r.strategies {
		out[n] = s.Metrics()
	}
	return out
}

// ResetMetrics zeroes the counters of one operation. Explicit operator
// action; returns false when the operation is unknown.
func (r *Registry) ResetMetrics(name string) bool {
	r.mu.RLock()
	s, ok := r.strategies[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	s.resetMetrics()
	return true
}

// MostReliable returns operation names ranked by descending success rate,
// considering only operations with at least minRankedAttempts attempts.
func (r *Registry) MostReliable() []string {
	return r.ranked(func(a, b Metrics) bool {
		return a.SuccessRate() > b.SuccessRate()
	})
}

// MostProblematic returns operation names ranked by ascending success rate
// over the same attempt floor.
func (r *Registry) MostProblematic() []string {
	return r.ranked(func(a, b Metrics) bool {
		return a.SuccessRate() < b.SuccessRate()
	})
}

func (r *Registry) ranked(less func(a, b Metrics) bool) []string {
	type entry struct {
		name string
		m    Metrics
	}

	r.mu.RLock()
	entries := make([]entry, 0, len(r.strategies))
	for n, s := range r.strategies {
		m := s.Metrics()
		if m.TotalAttempts >= minRankedAttempts {
			entries = append(entries, entry{name: n, m: m})
		}
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].m.SuccessRate() == entries[j].m.SuccessRate() {
			return entries[i].name < entries[j].name
		}
		return less(entries[i].m, entries[j].m)
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// OpenBreakers lists operations whose breaker is currently open, for health
// reporting.
func (r *Registry) OpenBreakers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []string
	for n, s := range r.strategies {
		if s.BreakerState() == StateOpen {
			open = append(open, n)
		}
	}
	sort.Strings(open)
	return open
}
