package stats

import (
	"context"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/ductran/recoverd/internal/core/domain"
	"github.com/ductran/recoverd/internal/infra/storage/memory"
)

func TestStatisticsAggregatesWindow(t *testing.T) {
	store := memory.NewStore()
	repo := memory.NewStatsRepo(store)
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	svc := NewService(repo, clocktesting.NewFakePassiveClock(now))
	ctx := context.Background()

	day := func(offset int) time.Time { return now.AddDate(0, 0, -offset) }

	// Two recovered network timeouts at 2s and 4s, one unrecovered.
	record := func(d time.Time, kind domain.FailureKind, ok bool, rt time.Duration) {
		if err := repo.RecordOutcome(ctx, d, kind, ok, rt); err != nil {
			t.Fatal(err)
		}
	}
	record(day(1), domain.FailureNetworkTimeout, true, 2*time.Second)
	record(day(1), domain.FailureNetworkTimeout, true, 4*time.Second)
	record(day(2), domain.FailureNetworkTimeout, false, 0)
	record(day(2), domain.FailureDeadlock, true, 6*time.Second)
	// Outside the 7-day window, must not count.
	record(day(9), domain.FailureDeadlock, false, 0)

	got, err := svc.Statistics(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalFailures != 4 || got.Recovered != 3 || got.Unrecovered != 1 {
		t.Fatalf("totals = %d/%d/%d, want 4/3/1", got.TotalFailures, got.Recovered, got.Unrecovered)
	}
	if got.RecoveryRate != 0.75 {
		t.Fatalf("recovery rate = %v, want 0.75", got.RecoveryRate)
	}
	// (2s+4s+6s) / 3 recoveries.
	if got.AvgRecoveryTime != 4*time.Second {
		t.Fatalf("avg recovery = %v, want 4s", got.AvgRecoveryTime)
	}

	nt := got.ByKind[domain.FailureNetworkTimeout]
	if nt.TotalFailures != 3 || nt.Recovered != 2 || nt.AvgRecovery != 3*time.Second {
		t.Fatalf("network timeout summary = %+v", nt)
	}
	dl := got.ByKind[domain.FailureDeadlock]
	if dl.TotalFailures != 1 || dl.Recovered != 1 || dl.AvgRecovery != 6*time.Second {
		t.Fatalf("deadlock summary = %+v", dl)
	}
}

func TestStatisticsEmptyWindow(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(memory.NewStatsRepo(store), nil)

	got, err := svc.Statistics(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.WindowDays != DefaultWindowDays {
		t.Fatalf("window = %d, want default %d", got.WindowDays, DefaultWindowDays)
	}
	if got.TotalFailures != 0 || got.RecoveryRate != 0 || len(got.ByKind) != 0 {
		t.Fatalf("expected empty stats, got %+v", got)
	}
}
