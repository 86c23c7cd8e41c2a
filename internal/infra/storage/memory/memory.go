// Package memory provides in-memory repository implementations for tests
// and db-less runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ductran/recoverd/internal/core/domain"
	"github.com/ductran/recoverd/internal/infra/storage"
)

// Store holds every table behind one RWMutex. Slices keep insertion order,
// which the checkpoint "latest" tiebreak relies on.
type Store struct {
	mu sync.RWMutex

	failures      []*domain.FailureRecord
	checkpoints   []*domain.Checkpoint
	validationLog []domain.ValidationLogEntry
	corrections   []*domain.CorrectionRecord
	stats         map[string]*domain.DailyRecovery

	applications  []domain.Application
	documents     []domain.Document
	notifications []domain.Notification
	analyses      []domain.AnalysisResult
}

func NewStore() *Store {
	return &Store{stats: make(map[string]*domain.DailyRecovery)}
}

// -----------------------------------------------------------------------------
// Failure Repository
// -----------------------------------------------------------------------------

type FailureRepo struct {
	store *Store
}

func NewFailureRepo(store *Store) *FailureRepo {
	return &FailureRepo{store: store}
}

func (r *FailureRepo) Add(ctx context.Context, rec *domain.FailureRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *rec
	r.store.failures = append(r.store.failures, &cp)
	return nil
}

func (r *FailureRepo) Update(ctx context.Context, rec *domain.FailureRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, existing := range r.store.failures {
		if existing.ID == rec.ID {
			cp := *rec
			r.store.failures[i] = &cp
			return nil
		}
	}
	return storage.ErrNotFound
}

func (r *FailureRepo) ListUnresolved(ctx context.Context, limit int) ([]*domain.FailureRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.FailureRecord
	for i := len(r.store.failures) - 1; i >= 0; i-- {
		if !r.store.failures[i].Resolved {
			cp := *r.store.failures[i]
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *FailureRepo) CountUnresolved(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0
	for _, f := range r.store.failures {
		if !f.Resolved {
			count++
		}
	}
	return count, nil
}

func (r *FailureRepo) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var kept []*domain.FailureRecord
	var removed int64
	for _, f := range r.store.failures {
		if f.Resolved && f.ResolvedAt != nil && f.ResolvedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	r.store.failures = kept
	return removed, nil
}

// -----------------------------------------------------------------------------
// Checkpoint Repository
// -----------------------------------------------------------------------------

type CheckpointRepo struct {
	store *Store
}

func NewCheckpointRepo(store *Store) *CheckpointRepo {
	return &CheckpointRepo{store: store}
}

func (r *CheckpointRepo) Add(ctx context.Context, cp *domain.Checkpoint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *cp
	r.store.checkpoints = append(r.store.checkpoints, &c)
	return nil
}

func (r *CheckpointRepo) Latest(ctx context.Context, workflowID string) (*domain.Checkpoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var latest *domain.Checkpoint
	for _, cp := range r.store.checkpoints {
		if cp.WorkflowID != workflowID {
			continue
		}
		// Not strictly after == insertion order wins on equal timestamps.
		if latest == nil || cp.CreatedAt.After(latest.CreatedAt) || cp.CreatedAt.Equal(latest.CreatedAt) {
			latest = cp
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

func (r *CheckpointRepo) List(ctx context.Context, workflowID string) ([]*domain.Checkpoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Checkpoint
	for _, cp := range r.store.checkpoints {
		if cp.WorkflowID == workflowID {
			c := *cp
			out = append(out, &c)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Validation Log Repository
// -----------------------------------------------------------------------------

type ValidationLogRepo struct {
	store *Store
}

func NewValidationLogRepo(store *Store) *ValidationLogRepo {
	return &ValidationLogRepo{store: store}
}

func (r *ValidationLogRepo) Add(ctx context.Context, entries []domain.ValidationLogEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.validationLog = append(r.store.validationLog, entries...)
	return nil
}

func (r *ValidationLogRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var kept []domain.ValidationLogEntry
	var removed int64
	for _, e := range r.store.validationLog {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.store.validationLog = kept
	return removed, nil
}

// -----------------------------------------------------------------------------
// Correction Repository
// -----------------------------------------------------------------------------

type CorrectionRepo struct {
	store *Store
}

func NewCorrectionRepo(store *Store) *CorrectionRepo {
	return &CorrectionRepo{store: store}
}

func (r *CorrectionRepo) ListByRun(ctx context.Context, runID string) ([]*domain.CorrectionRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.CorrectionRecord
	for _, c := range r.store.corrections {
		if c.RunID == runID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Stats Repository
// -----------------------------------------------------------------------------

type StatsRepo struct {
	store *Store
}

func NewStatsRepo(store *Store) *StatsRepo {
	return &StatsRepo{store: store}
}

func statsKey(date time.Time, kind domain.FailureKind) string {
	return date.Format("2006-01-02") + "|" + kind.String()
}

func (r *StatsRepo) RecordOutcome(ctx context.Context, date time.Time, kind domain.FailureKind, recovered bool, recoveryTime time.Duration) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	day := date.Truncate(24 * time.Hour)
	key := statsKey(day, kind)
	row, ok := r.store.stats[key]
	if !ok {
		row = &domain.DailyRecovery{Date: day, Kind: kind}
		r.store.stats[key] = row
	}

	row.TotalFailures++
	if recovered {
		// Running average over successful recoveries only.
		total := row.AvgRecoveryTime*time.Duration(row.Recovered) + recoveryTime
		row.Recovered++
		row.AvgRecoveryTime = total / time.Duration(row.Recovered)
	} else {
		row.Unrecovered++
	}
	return nil
}

func (r *StatsRepo) Window(ctx context.Context, from time.Time) ([]domain.DailyRecovery, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.DailyRecovery
	for _, row := range r.store.stats {
		if !row.Date.Before(from) {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
