package worker

import (
	"context"
	"testing"
	"time"

	"github.com/ductran/recoverd/internal/core/config"
	"github.com/ductran/recoverd/internal/core/domain"
	"github.com/ductran/recoverd/internal/infra/storage/memory"
)

func TestPruneRemovesOnlyOldResolvedFailures(t *testing.T) {
	store := memory.NewStore()
	failures := memory.NewFailureRepo(store)
	ctx := context.Background()

	oldResolved := time.Now().Add(-48 * time.Hour)
	add := func(id string, resolved bool, resolvedAt *time.Time) {
		rec := &domain.FailureRecord{
			ID:            id,
			Kind:          domain.FailureNetworkTimeout,
			OperationName: "send-email",
			Resolved:      resolved,
			CreatedAt:     time.Now().Add(-72 * time.Hour),
			ResolvedAt:    resolvedAt,
		}
		if err := failures.Add(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	add("old-resolved", true, &oldResolved)
	add("open", false, nil)

	p := NewPruner(config.RetentionConfig{
		ResolvedFailures: 24 * time.Hour,
		ValidationLogs:   24 * time.Hour,
	}, failures, nil, nil)
	p.prune(ctx)

	count, err := failures.CountUnresolved(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("unresolved count = %d, want 1", count)
	}

	// The resolved record is gone, so pruning again removes nothing.
	removed, err := failures.DeleteResolvedBefore(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Fatalf("expected old resolved record already pruned, removed %d", removed)
	}
}

// Retention counts from resolution, not from first failure: a record that
// failed long ago but recovered recently stays.
func TestPruneKeepsRecentlyResolvedFailures(t *testing.T) {
	store := memory.NewStore()
	failures := memory.NewFailureRepo(store)
	ctx := context.Background()

	justResolved := time.Now()
	rec := &domain.FailureRecord{
		ID:            "long-running",
		Kind:          domain.FailureNetworkTimeout,
		OperationName: "send-email",
		Resolved:      true,
		CreatedAt:     time.Now().Add(-30 * 24 * time.Hour),
		ResolvedAt:    &justResolved,
	}
	if err := failures.Add(ctx, rec); err != nil {
		t.Fatal(err)
	}

	removed, err := failures.DeleteResolvedBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Fatalf("removed %d records, want 0", removed)
	}
}

func TestPruneValidationLogs(t *testing.T) {
	store := memory.NewStore()
	valLog := memory.NewValidationLogRepo(store)
	ctx := context.Background()

	err := valLog.Add(ctx, []domain.ValidationLogEntry{
		{RunID: "run-old", Kind: domain.IssueOrphanedDocument, Severity: domain.SeverityCritical, CreatedAt: time.Now().Add(-48 * time.Hour)},
		{RunID: "run-new", Kind: domain.IssueStaleApplication, Severity: domain.SeverityInfo, CreatedAt: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}

	p := NewPruner(config.RetentionConfig{
		ResolvedFailures: 24 * time.Hour,
		ValidationLogs:   24 * time.Hour,
	}, nil, valLog, nil)
	p.prune(ctx)

	removed, err := valLog.DeleteBefore(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected only the recent row to remain, removed %d", removed)
	}
}
