package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttemptsTotal tracks operation attempts by outcome.
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_attempts_total",
			Help: "Total number of operation attempts",
		},
		[]string{"operation", "outcome"},
	)

	// FailuresTotal tracks classified failures per operation and kind.
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_failures_total",
			Help: "Total number of classified failures",
		},
		[]string{"operation", "kind"},
	)

	// RetriesExhaustedTotal counts operations that ran out of retries.
	RetriesExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_retries_exhausted_total",
			Help: "Total number of operations whose retries were exhausted or denied",
		},
		[]string{"operation", "kind"},
	)

	// RetryDelay tracks computed backoff delays.
	RetryDelay = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recoverd_retry_delay_seconds",
			Help:    "Backoff delay applied before a retry",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"operation"},
	)

	// BreakerState exposes the circuit position per operation
	// (0 closed, 1 open, 2 half-open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recoverd_breaker_state",
			Help: "Circuit breaker state per operation (0=closed, 1=open, 2=half_open)",
		},
		[]string{"operation"},
	)

	// CheckpointsTotal counts checkpoint writes per workflow stage.
	CheckpointsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_checkpoints_total",
			Help: "Total number of checkpoints written",
		},
		[]string{"stage"},
	)

	// IssuesFound tracks consistency issues by kind and severity.
	IssuesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_consistency_issues_total",
			Help: "Total number of consistency issues detected",
		},
		[]string{"kind", "severity"},
	)

	// CorrectionsTotal tracks applied corrections by kind and result.
	CorrectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_corrections_total",
			Help: "Total number of attempted automatic corrections",
		},
		[]string{"kind", "result"},
	)

	// ValidationRuns counts validation sweeps by derived status.
	ValidationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_validation_runs_total",
			Help: "Total number of consistency validation runs",
		},
		[]string{"status"},
	)

	// DBConnectionPoolUsage tracks the connection pool utilization percentage.
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recoverd_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
