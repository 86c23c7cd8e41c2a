// Package stats aggregates daily recovery outcomes into trailing-window
// summaries for the status surfaces.
package stats

import (
	"context"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/ductran/recoverd/internal/core/domain"
	"github.com/ductran/recoverd/internal/infra/storage"
)

// DefaultWindowDays is used when a caller asks for a non-positive window.
const DefaultWindowDays = 7

// Service reads the per-day rows and folds them into totals.
type Service struct {
	repo  storage.StatsRepository
	clock clock.PassiveClock
}

func NewService(repo storage.StatsRepository, clk clock.PassiveClock) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Service{repo: repo, clock: clk}
}

// Statistics aggregates the trailing windowDays of recovery outcomes. A
// window with no rows yields zero counters and a zero rate, not an error.
func (s *Service) Statistics(ctx context.Context, windowDays int) (*domain.RecoveryStats, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	now := s.clock.Now().UTC()
	from := now.AddDate(0, 0, -windowDays).Truncate(24 * time.Hour)

	rows, err := s.repo.Window(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("load recovery window: %w", err)
	}

	out := &domain.RecoveryStats{
		WindowDays: windowDays,
		ByKind:     make(map[domain.FailureKind]domain.KindSummary),
	}

	// Average recovery times are weighted by the number of recoveries
	// behind each row, so a quiet day does not skew the window.
	var totalWeighted time.Duration
	kindWeighted := make(map[domain.FailureKind]time.Duration)
	for _, row := range rows {
		out.TotalFailures += row.TotalFailures
		out.Recovered += row.Recovered
		out.Unrecovered += row.Unrecovered
		totalWeighted += row.AvgRecoveryTime * time.Duration(row.Recovered)

		sum := out.ByKind[row.Kind]
		sum.TotalFailures += row.TotalFailures
		sum.Recovered += row.Recovered
		sum.Unrecovered += row.Unrecovered
		kindWeighted[row.Kind] += row.AvgRecoveryTime * time.Duration(row.Recovered)
		out.ByKind[row.Kind] = sum
	}

	if out.TotalFailures > 0 {
		out.RecoveryRate = float64(out.Recovered) / float64(out.TotalFailures)
	}
	if out.Recovered > 0 {
		out.AvgRecoveryTime = totalWeighted / time.Duration(out.Recovered)
	}
	for kind, sum := range out.ByKind {
		if sum.Recovered > 0 {
			sum.AvgRecovery = kindWeighted[kind] / time.Duration(sum.Recovered)
			out.ByKind[kind] = sum
		}
	}
	return out, nil
}
