package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ductran/recoverd/internal/core/domain"
)

// StatsRepo implements storage.StatsRepository using PostgreSQL. Each
// outcome additively upserts one (date, kind) row; recovery time is kept
// as a running total so the average survives concurrent writers.
type StatsRepo struct {
	db *DB
}

// NewStatsRepo creates a new PostgreSQL statistics repository.
func NewStatsRepo(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// RecordOutcome upserts one recovery outcome.
func (r *StatsRepo) RecordOutcome(ctx context.Context, date time.Time, kind domain.FailureKind, recovered bool, recoveryTime time.Duration) error {
	day := date.UTC().Truncate(24 * time.Hour)
	successes := 0
	failures := 0
	timeMs := int64(0)
	if recovered {
		successes = 1
		timeMs = recoveryTime.Milliseconds()
	} else {
		failures = 1
	}

	query := `
		INSERT INTO recovery_statistics (date, failure_kind, total_failures, successful_recoveries, failed_recoveries, total_recovery_time_ms)
		VALUES ($1, $2, 1, $3, $4, $5)
		ON CONFLICT (date, failure_kind) DO UPDATE SET
			total_failures = recovery_statistics.total_failures + 1,
			successful_recoveries = recovery_statistics.successful_recoveries + EXCLUDED.successful_recoveries,
			failed_recoveries = recovery_statistics.failed_recoveries + EXCLUDED.failed_recoveries,
			total_recovery_time_ms = recovery_statistics.total_recovery_time_ms + EXCLUDED.total_recovery_time_ms
	`
	_, err := r.db.ExecContext(ctx, query, day, kind.String(), successes, failures, timeMs)
	if err != nil {
		return fmt.Errorf("failed to record recovery outcome: %w", err)
	}
	return nil
}

type statsRow struct {
	Date        time.Time `db:"date"`
	FailureKind string    `db:"failure_kind"`
	Total       int       `db:"total_failures"`
	Recovered   int       `db:"successful_recoveries"`
	Unrecovered int       `db:"failed_recoveries"`
	TotalTimeMs int64     `db:"total_recovery_time_ms"`
}

// Window returns the per-day rows with date >= from, oldest first.
func (r *StatsRepo) Window(ctx context.Context, from time.Time) ([]domain.DailyRecovery, error) {
	query := `
		SELECT date, failure_kind, total_failures, successful_recoveries, failed_recoveries, total_recovery_time_ms
		FROM recovery_statistics
		WHERE date >= $1
		ORDER BY date ASC, failure_kind ASC
	`
	var rows []statsRow
	if err := r.db.SelectContext(ctx, &rows, query, from.UTC().Truncate(24*time.Hour)); err != nil {
		return nil, fmt.Errorf("failed to load recovery statistics: %w", err)
	}

	out := make([]domain.DailyRecovery, 0, len(rows))
	for _, row := range rows {
		daily := domain.DailyRecovery{
			Date:          row.Date,
			Kind:          domain.ParseFailureKind(row.FailureKind),
			TotalFailures: row.Total,
			Recovered:     row.Recovered,
			Unrecovered:   row.Unrecovered,
		}
		if row.Recovered > 0 {
			daily.AvgRecoveryTime = time.Duration(row.TotalTimeMs/int64(row.Recovered)) * time.Millisecond
		}
		out = append(out, daily)
	}
	return out, nil
}
