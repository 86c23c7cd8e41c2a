package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ductran/recoverd/internal/core/domain"
	"github.com/ductran/recoverd/internal/infra/storage"
)

// FailureRepo implements storage.FailureRepository using PostgreSQL.
type FailureRepo struct {
	db *DB
}

// NewFailureRepo creates a new PostgreSQL failure repository.
func NewFailureRepo(db *DB) *FailureRepo {
	return &FailureRepo{db: db}
}

type failureRow struct {
	ID            string     `db:"id"`
	Kind          string     `db:"kind"`
	OperationName string     `db:"operation_name"`
	WorkflowID    string     `db:"workflow_id"`
	Message       string     `db:"message"`
	Context       []byte     `db:"context"`
	Attempts      int        `db:"attempts"`
	Resolved      bool       `db:"resolved"`
	CreatedAt     time.Time  `db:"created_at"`
	ResolvedAt    *time.Time `db:"resolved_at"`
}

func (row failureRow) toDomain() (*domain.FailureRecord, error) {
	rec := &domain.FailureRecord{
		ID:            row.ID,
		Kind:          domain.ParseFailureKind(row.Kind),
		OperationName: row.OperationName,
		WorkflowID:    row.WorkflowID,
		Message:       row.Message,
		Attempts:      row.Attempts,
		Resolved:      row.Resolved,
		CreatedAt:     row.CreatedAt,
		ResolvedAt:    row.ResolvedAt,
	}
	if len(row.Context) > 0 {
		if err := json.Unmarshal(row.Context, &rec.Context); err != nil {
			return nil, fmt.Errorf("failed to decode failure context: %w", err)
		}
	}
	return rec, nil
}

// Add inserts a new failure record.
func (r *FailureRepo) Add(ctx context.Context, rec *domain.FailureRecord) error {
	contextJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("failed to encode failure context: %w", err)
	}

	query := `
		INSERT INTO failure_records (id, kind, operation_name, workflow_id, message, context, attempts, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.Kind.String(),
		rec.OperationName,
		rec.WorkflowID,
		rec.Message,
		contextJSON,
		rec.Attempts,
		rec.Resolved,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add failure record: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing record.
func (r *FailureRepo) Update(ctx context.Context, rec *domain.FailureRecord) error {
	query := `
		UPDATE failure_records
		SET kind = $2, message = $3, attempts = $4, resolved = $5, resolved_at = $6
		WHERE id = $1
	`
	res, err := r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.Kind.String(),
		rec.Message,
		rec.Attempts,
		rec.Resolved,
		rec.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update failure record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListUnresolved returns open failures, newest first.
func (r *FailureRepo) ListUnresolved(ctx context.Context, limit int) ([]*domain.FailureRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, kind, operation_name, workflow_id, message, context, attempts, resolved, created_at, resolved_at
		FROM failure_records
		WHERE NOT resolved
		ORDER BY created_at DESC
		LIMIT $1
	`
	var rows []failureRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list unresolved failures: %w", err)
	}

	out := make([]*domain.FailureRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// CountUnresolved returns the number of open failures.
func (r *FailureRepo) CountUnresolved(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM failure_records WHERE NOT resolved`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to count unresolved failures: %w", err)
	}
	return count, nil
}

// DeleteResolvedBefore prunes resolved records older than the cutoff.
func (r *FailureRepo) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(
		ctx,
		`DELETE FROM failure_records WHERE resolved AND resolved_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune failure records: %w", err)
	}
	return res.RowsAffected()
}
