package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ductran/recoverd/internal/core/domain"
	"github.com/ductran/recoverd/internal/infra/storage"
)

// WorkflowRepo implements storage.WorkflowStore using PostgreSQL. Reads
// run on the pool; corrections run inside their own transaction.
type WorkflowRepo struct {
	db *DB
}

// NewWorkflowRepo creates a new PostgreSQL workflow repository.
func NewWorkflowRepo(db *DB) *WorkflowRepo {
	return &WorkflowRepo{db: db}
}

// Applications loads every application row.
func (r *WorkflowRepo) Applications(ctx context.Context) ([]domain.Application, error) {
	query := `
		SELECT id, workflow_id, status, analysis_complete, documents_ready, notified, created_at, updated_at
		FROM applications
	`
	var out []domain.Application
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to load applications: %w", err)
	}
	return out, nil
}

// Documents loads every document row.
func (r *WorkflowRepo) Documents(ctx context.Context) ([]domain.Document, error) {
	var out []domain.Document
	if err := r.db.SelectContext(ctx, &out, `SELECT id, application_id, kind, created_at FROM documents`); err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	return out, nil
}

// Notifications loads every notification row.
func (r *WorkflowRepo) Notifications(ctx context.Context) ([]domain.Notification, error) {
	var out []domain.Notification
	if err := r.db.SelectContext(ctx, &out, `SELECT id, application_id, channel, created_at FROM notifications`); err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	return out, nil
}

// AnalysisResults loads every analysis result row.
func (r *WorkflowRepo) AnalysisResults(ctx context.Context) ([]domain.AnalysisResult, error) {
	var out []domain.AnalysisResult
	if err := r.db.SelectContext(ctx, &out, `SELECT id, application_id, created_at FROM analysis_results`); err != nil {
		return nil, fmt.Errorf("failed to load analysis results: %w", err)
	}
	return out, nil
}

// BeginCorrection opens the transaction one repair runs in. The
// corrective writes and the audit row commit or roll back together.
func (r *WorkflowRepo) BeginCorrection(ctx context.Context) (storage.CorrectionUnit, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &correctionUnit{tx: tx}, nil
}

type correctionUnit struct {
	tx *sqlx.Tx
}

func (u *correctionUnit) deleteIn(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("DELETE FROM %s WHERE id IN (?)", table), ids)
	if err != nil {
		return fmt.Errorf("failed to build delete for %s: %w", table, err)
	}
	if _, err := u.tx.ExecContext(ctx, u.tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

func (u *correctionUnit) DeleteDocuments(ctx context.Context, ids []string) error {
	return u.deleteIn(ctx, "documents", ids)
}

func (u *correctionUnit) DeleteNotifications(ctx context.Context, ids []string) error {
	return u.deleteIn(ctx, "notifications", ids)
}

func (u *correctionUnit) DeleteAnalysisResults(ctx context.Context, ids []string) error {
	return u.deleteIn(ctx, "analysis_results", ids)
}

func (u *correctionUnit) InsertNotification(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, application_id, channel, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := u.tx.ExecContext(ctx, query, n.ID, n.ApplicationID, n.Channel, n.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (u *correctionUnit) UpdateApplicationFlags(ctx context.Context, id string, analysisComplete, documentsReady, notified bool) error {
	query := `
		UPDATE applications
		SET analysis_complete = $2, documents_ready = $3, notified = $4, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := u.tx.ExecContext(ctx, query, id, analysisComplete, documentsReady, notified); err != nil {
		return fmt.Errorf("failed to update application flags: %w", err)
	}
	return nil
}

func (u *correctionUnit) AddCorrection(ctx context.Context, rec *domain.CorrectionRecord) error {
	recordIDs, err := json.Marshal(rec.RecordIDs)
	if err != nil {
		return fmt.Errorf("failed to encode correction record ids: %w", err)
	}

	query := `
		INSERT INTO corrections (run_id, issue_kind, table_name, record_ids, action, success, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = u.tx.ExecContext(
		ctx,
		query,
		rec.RunID,
		string(rec.Kind),
		rec.TableName,
		recordIDs,
		rec.Action,
		rec.Success,
		rec.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add correction record: %w", err)
	}
	return nil
}

// Commit commits the transaction.
func (u *correctionUnit) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("transaction already completed")
	}
	err := u.tx.Commit()
	u.tx = nil
	return err
}

// Rollback rolls back the transaction. Safe to call multiple times.
func (u *correctionUnit) Rollback() error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback()
	u.tx = nil
	return err
}
