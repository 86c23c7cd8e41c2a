package domain

import "time"

// Checkpoint is an immutable snapshot of a workflow's progress at a stage
// boundary. Checkpoints are append-only; callers resume by reading the
// latest one for a workflow and replaying from Stage/Data.
type Checkpoint struct {
	ID         string         `json:"checkpoint_id" db:"checkpoint_id"`
	WorkflowID string         `json:"workflow_id" db:"workflow_id"`
	Stage      string         `json:"stage" db:"stage"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}
