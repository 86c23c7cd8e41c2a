// Package checkpoint persists named-workflow progress snapshots so a
// driver can resume after interruption.
package checkpoint

import (
	"context"
	"fmt"

	"k8s.io/utils/clock"

	"github.com/ductran/recoverd/internal/core/domain"
	"github.com/ductran/recoverd/internal/infra/storage"
	"github.com/ductran/recoverd/internal/metrics"
)

// Store writes and reads checkpoints. Checkpoints are append-only; resuming
// means reading the latest and replaying from its stage and payload.
type Store struct {
	repo  storage.CheckpointRepository
	clock clock.PassiveClock
}

// NewStore creates a checkpoint store. A nil clock falls back to real time.
func NewStore(repo storage.CheckpointRepository, c clock.PassiveClock) *Store {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Store{repo: repo, clock: c}
}

// Create writes a checkpoint for the workflow at a stage boundary and
// returns its id. The id derives from workflow, stage and creation time, so
// it is unique without any coordination between writers.
func (s *Store) Create(ctx context.Context, workflowID, stage string, data map[string]any) (string, error) {
	if workflowID == "" {
		return "", fmt.Errorf("workflow id is required")
	}
	if stage == "" {
		return "", fmt.Errorf("stage is required")
	}

	now := s.clock.Now()
	cp := &domain.Checkpoint{
		ID:         fmt.Sprintf("%s:%s:%d", workflowID, stage, now.UnixNano()),
		WorkflowID: workflowID,
		Stage:      stage,
		Data:       data,
		CreatedAt:  now,
	}

	if err := s.repo.Add(ctx, cp); err != nil {
		return "", fmt.Errorf("failed to create checkpoint: %w", err)
	}
	metrics.CheckpointsTotal.WithLabelValues(stage).Inc()
	return cp.ID, nil
}

// Latest returns the most recent checkpoint of the workflow, or nil when
// the workflow has none.
func (s *Store) Latest(ctx context.Context, workflowID string) (*domain.Checkpoint, error) {
	cp, err := s.repo.Latest(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest checkpoint: %w", err)
	}
	return cp, nil
}

// History returns every checkpoint of the workflow, oldest first.
func (s *Store) History(ctx context.Context, workflowID string) ([]*domain.Checkpoint, error) {
	cps, err := s.repo.List(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return cps, nil
}
