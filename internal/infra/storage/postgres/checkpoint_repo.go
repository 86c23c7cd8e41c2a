package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ductran/recoverd/internal/core/domain"
)

// CheckpointRepo implements storage.CheckpointRepository using PostgreSQL.
type CheckpointRepo struct {
	db *DB
}

// NewCheckpointRepo creates a new PostgreSQL checkpoint repository.
func NewCheckpointRepo(db *DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

type checkpointRow struct {
	ID         string    `db:"id"`
	WorkflowID string    `db:"workflow_id"`
	Stage      string    `db:"stage"`
	Data       []byte    `db:"data"`
	CreatedAt  time.Time `db:"created_at"`
}

func (row checkpointRow) toDomain() (*domain.Checkpoint, error) {
	cp := &domain.Checkpoint{
		ID:         row.ID,
		WorkflowID: row.WorkflowID,
		Stage:      row.Stage,
		CreatedAt:  row.CreatedAt,
	}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &cp.Data); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint data: %w", err)
		}
	}
	return cp, nil
}

// Add inserts a checkpoint.
func (r *CheckpointRepo) Add(ctx context.Context, cp *domain.Checkpoint) error {
	dataJSON, err := json.Marshal(cp.Data)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint data: %w", err)
	}

	query := `
		INSERT INTO checkpoints (id, workflow_id, stage, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.db.ExecContext(ctx, query, cp.ID, cp.WorkflowID, cp.Stage, dataJSON, cp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add checkpoint: %w", err)
	}
	return nil
}

// Latest returns the newest checkpoint for the workflow, the insert
// sequence breaking created_at ties. Nil when none exists.
func (r *CheckpointRepo) Latest(ctx context.Context, workflowID string) (*domain.Checkpoint, error) {
	query := `
		SELECT id, workflow_id, stage, data, created_at
		FROM checkpoints
		WHERE workflow_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`
	var row checkpointRow
	err := r.db.GetContext(ctx, &row, query, workflowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest checkpoint: %w", err)
	}
	return row.toDomain()
}

// List returns all checkpoints of a workflow, oldest first.
func (r *CheckpointRepo) List(ctx context.Context, workflowID string) ([]*domain.Checkpoint, error) {
	query := `
		SELECT id, workflow_id, stage, data, created_at
		FROM checkpoints
		WHERE workflow_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	var rows []checkpointRow
	if err := r.db.SelectContext(ctx, &rows, query, workflowID); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	out := make([]*domain.Checkpoint, 0, len(rows))
	for _, row := range rows {
		cp, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}
