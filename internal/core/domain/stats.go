package domain

import "time"

// DailyRecovery is one upserted row per (date, failure kind) in the
// recovery_statistics table. Counters are additive.
type DailyRecovery struct {
	Date            time.Time     `json:"date" db:"date"`
	Kind            FailureKind   `json:"failure_kind"`
	TotalFailures   int           `json:"total_failures" db:"total_failures"`
	Recovered       int           `json:"successful_recoveries" db:"successful_recoveries"`
	Unrecovered     int           `json:"failed_recoveries" db:"failed_recoveries"`
	AvgRecoveryTime time.Duration `json:"avg_recovery_time"`
}

// RecoveryStats aggregates recovery outcomes over a trailing window.
type RecoveryStats struct {
	WindowDays      int                         `json:"window_days"`
	TotalFailures   int                         `json:"total_failures"`
	Recovered       int                         `json:"successful_recoveries"`
	Unrecovered     int                         `json:"failed_recoveries"`
	RecoveryRate    float64                     `json:"recovery_rate"`
	AvgRecoveryTime time.Duration               `json:"avg_recovery_time"`
	ByKind          map[FailureKind]KindSummary `json:"by_kind"`
}

// KindSummary is the per-kind slice of RecoveryStats.
type KindSummary struct {
	TotalFailures int           `json:"total_failures"`
	Recovered     int           `json:"successful_recoveries"`
	Unrecovered   int           `json:"failed_recoveries"`
	AvgRecovery   time.Duration `json:"avg_recovery_time"`
}
