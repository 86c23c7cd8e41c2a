// Package storage defines the repository contracts the resilience
// subsystem persists through. PostgreSQL and in-memory implementations live
// in subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ductran/recoverd/internal/core/domain"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// FailureRepository stores failure records across retry attempts.
type FailureRepository interface {
	// Add inserts a new failure record.
	Add(ctx context.Context, rec *domain.FailureRecord) error

	// Update rewrites attempts, resolved and resolved_at of an existing
	// record.
	Update(ctx context.Context, rec *domain.FailureRecord) error

	// ListUnresolved returns open failures, newest first, up to limit.
	ListUnresolved(ctx context.Context, limit int) ([]*domain.FailureRecord, error)

	// CountUnresolved returns the number of open failures.
	CountUnresolved(ctx context.Context) (int, error)

	// DeleteResolvedBefore prunes records whose resolution predates the
	// cutoff and reports how many were removed.
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CheckpointRepository stores workflow progress snapshots. Append-only:
// no update or delete is exposed.
type CheckpointRepository interface {
	// Add inserts a checkpoint.
	Add(ctx context.Context, cp *domain.Checkpoint) error

	// Latest returns the checkpoint with the greatest created_at for the
	// workflow, insertion order breaking ties; nil when none exists.
	Latest(ctx context.Context, workflowID string) (*domain.Checkpoint, error)

	// List returns all checkpoints of a workflow, oldest first.
	List(ctx context.Context, workflowID string) ([]*domain.Checkpoint, error)
}

// ValidationLogRepository stores per-issue rows of validation runs.
type ValidationLogRepository interface {
	Add(ctx context.Context, entries []domain.ValidationLogEntry) error

	// DeleteBefore prunes log rows older than the cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CorrectionRepository reads correction audit rows. Writes happen through
// CorrectionUnit so they share the transaction of the repair itself.
type CorrectionRepository interface {
	ListByRun(ctx context.Context, runID string) ([]*domain.CorrectionRecord, error)
}

// StatsRepository upserts and aggregates daily recovery statistics.
type StatsRepository interface {
	// RecordOutcome additively upserts one (date, kind) row. recoveryTime
	// only contributes when recovered is true.
	RecordOutcome(ctx context.Context, date time.Time, kind domain.FailureKind, recovered bool, recoveryTime time.Duration) error

	// Window returns the per-day rows with date >= from.
	Window(ctx context.Context, from time.Time) ([]domain.DailyRecovery, error)
}

// WorkflowReader loads the observed workflow tables for consistency checks.
// These tables belong to the orchestrating application; this subsystem only
// reads them and applies bounded repairs through CorrectionUnit.
type WorkflowReader interface {
	Applications(ctx context.Context) ([]domain.Application, error)
	Documents(ctx context.Context) ([]domain.Document, error)
	Notifications(ctx context.Context) ([]domain.Notification, error)
	AnalysisResults(ctx context.Context) ([]domain.AnalysisResult, error)
}

// CorrectionUnit is one transactional repair: the corrective writes and the
// audit row commit or roll back together.
type CorrectionUnit interface {
	DeleteDocuments(ctx context.Context, ids []string) error
	DeleteNotifications(ctx context.Context, ids []string) error
	DeleteAnalysisResults(ctx context.Context, ids []string) error
	InsertNotification(ctx context.Context, n *domain.Notification) error
	UpdateApplicationFlags(ctx context.Context, id string, analysisComplete, documentsReady, notified bool) error
	AddCorrection(ctx context.Context, rec *domain.CorrectionRecord) error

	Commit() error
	// Rollback is safe to call after Commit; it becomes a no-op.
	Rollback() error
}

// WorkflowStore combines the read model with transactional corrections.
type WorkflowStore interface {
	WorkflowReader

	BeginCorrection(ctx context.Context) (CorrectionUnit, error)
}
