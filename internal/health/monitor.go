package health

import (
	"context"
	"sync"
	"time"

	"github.com/ductran/recoverd/internal/core/domain"
	"github.com/ductran/recoverd/internal/infra/storage"
	"github.com/ductran/recoverd/internal/recovery/retry"
)

// Pinger checks that a backing service is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

// Monitor aggregates health status from the retry registry, the failure
// store and the last validation run.
type Monitor struct {
	registry *retry.Registry
	failures storage.FailureRepository
	db       Pinger

	mu               sync.RWMutex
	lastCheck        time.Time
	lastReport       *Report
	lastValidation   domain.HealthStatus
	lastValidationAt time.Time
}

// NewMonitor creates a new health monitor. failures and db may be nil.
func NewMonitor(registry *retry.Registry, failures storage.FailureRepository, db Pinger) *Monitor {
	return &Monitor{
		registry: registry,
		failures: failures,
		db:       db,
	}
}

// OperationMetrics returns the metrics snapshot of one operation strategy,
// or of every strategy when name is empty.
func (m *Monitor) OperationMetrics(name string) map[string]retry.Metrics {
	return m.registry.Snapshot(name)
}

// ResetOperationMetrics zeroes the counters of one operation strategy.
// Returns false when the operation is unknown.
func (m *Monitor) ResetOperationMetrics(name string) bool {
	return m.registry.ResetMetrics(name)
}

// RecordValidation notes the verdict of the latest consistency run.
func (m *Monitor) RecordValidation(status domain.HealthStatus, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastValidation = status
	m.lastValidationAt = at
}

// CheckHealth builds the current report. Checks are rate limited to once
// per 10s to keep the endpoint cheap under probe storms.
func (m *Monitor) CheckHealth(ctx context.Context) *Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && m.lastReport != nil {
		return m.lastReport
	}

	report := &Report{
		Status:           StatusHealthy,
		Database:         "disabled",
		LastValidation:   m.lastValidation,
		LastValidationAt: m.lastValidationAt,
	}

	report.OpenBreakers = m.registry.OpenBreakers()

	if m.failures != nil {
		if count, err := m.failures.CountUnresolved(ctx); err == nil {
			report.UnresolvedFailures = count
		}
	}

	if m.db != nil {
		if err := m.db.Health(ctx); err != nil {
			report.Database = "unreachable"
		} else {
			report.Database = "ok"
		}
	}

	switch {
	case report.Database == "unreachable" || m.lastValidation == domain.HealthCritical:
		report.Status = StatusCritical
	case len(report.OpenBreakers) > 0 || report.UnresolvedFailures > 0 ||
		m.lastValidation == domain.HealthMultipleWarnings || m.lastValidation == domain.HealthMinorIssues:
		report.Status = StatusDegraded
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
