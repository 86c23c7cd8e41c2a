package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ductran/recoverd/internal/core/domain"
)

// ValidationLogRepo implements storage.ValidationLogRepository using
// PostgreSQL.
type ValidationLogRepo struct {
	db *DB
}

// NewValidationLogRepo creates a new PostgreSQL validation log repository.
func NewValidationLogRepo(db *DB) *ValidationLogRepo {
	return &ValidationLogRepo{db: db}
}

// Add inserts the per-issue rows of one validation run.
func (r *ValidationLogRepo) Add(ctx context.Context, entries []domain.ValidationLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO validation_log (run_id, issue_kind, severity, description, affected_count, correctable, corrected, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, e := range entries {
		_, err := r.db.ExecContext(
			ctx,
			query,
			e.RunID,
			string(e.Kind),
			string(e.Severity),
			e.Description,
			e.AffectedCount,
			e.Correctable,
			e.Corrected,
			e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to add validation log entry: %w", err)
		}
	}
	return nil
}

// DeleteBefore prunes log rows older than the cutoff.
func (r *ValidationLogRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM validation_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune validation log: %w", err)
	}
	return res.RowsAffected()
}

// CorrectionRepo implements storage.CorrectionRepository using PostgreSQL.
// Writes go through the correction unit so they share the repair's
// transaction.
type CorrectionRepo struct {
	db *DB
}

// NewCorrectionRepo creates a new PostgreSQL correction repository.
func NewCorrectionRepo(db *DB) *CorrectionRepo {
	return &CorrectionRepo{db: db}
}

type correctionRow struct {
	RunID     string    `db:"run_id"`
	IssueKind string    `db:"issue_kind"`
	TableName string    `db:"table_name"`
	RecordIDs []byte    `db:"record_ids"`
	Action    string    `db:"action"`
	Success   bool      `db:"success"`
	AppliedAt time.Time `db:"applied_at"`
}

// ListByRun returns the audit rows of one validation run.
func (r *CorrectionRepo) ListByRun(ctx context.Context, runID string) ([]*domain.CorrectionRecord, error) {
	query := `
		SELECT run_id, issue_kind, table_name, record_ids, action, success, applied_at
		FROM corrections
		WHERE run_id = $1
		ORDER BY id ASC
	`
	var rows []correctionRow
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}

	out := make([]*domain.CorrectionRecord, 0, len(rows))
	for _, row := range rows {
		rec := &domain.CorrectionRecord{
			RunID:     row.RunID,
			Kind:      domain.IssueKind(row.IssueKind),
			TableName: row.TableName,
			Action:    row.Action,
			Success:   row.Success,
			AppliedAt: row.AppliedAt,
		}
		if len(row.RecordIDs) > 0 {
			if err := json.Unmarshal(row.RecordIDs, &rec.RecordIDs); err != nil {
				return nil, fmt.Errorf("failed to decode correction record ids: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
