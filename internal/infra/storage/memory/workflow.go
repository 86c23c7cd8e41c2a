package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ductran/recoverd/internal/core/domain"
	"github.com/ductran/recoverd/internal/infra/storage"
)

// WorkflowRepo implements storage.WorkflowStore over the shared Store.
type WorkflowRepo struct {
	store *Store
}

func NewWorkflowRepo(store *Store) *WorkflowRepo {
	return &WorkflowRepo{store: store}
}

// Seed helpers used by tests and the db-less mode.

func (r *WorkflowRepo) AddApplication(app domain.Application) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.applications = append(r.store.applications, app)
}

func (r *WorkflowRepo) AddDocument(doc domain.Document) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.documents = append(r.store.documents, doc)
}

func (r *WorkflowRepo) AddNotification(n domain.Notification) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.notifications = append(r.store.notifications, n)
}

func (r *WorkflowRepo) AddAnalysisResult(a domain.AnalysisResult) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.analyses = append(r.store.analyses, a)
}

func (r *WorkflowRepo) Applications(ctx context.Context) ([]domain.Application, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]domain.Application(nil), r.store.applications...), nil
}

func (r *WorkflowRepo) Documents(ctx context.Context) ([]domain.Document, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]domain.Document(nil), r.store.documents...), nil
}

func (r *WorkflowRepo) Notifications(ctx context.Context) ([]domain.Notification, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]domain.Notification(nil), r.store.notifications...), nil
}

func (r *WorkflowRepo) AnalysisResults(ctx context.Context) ([]domain.AnalysisResult, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]domain.AnalysisResult(nil), r.store.analyses...), nil
}

// BeginCorrection snapshots the workflow tables so Rollback can restore
// them. The store lock is held until Commit or Rollback, which gives the
// same all-or-nothing visibility a database transaction would.
func (r *WorkflowRepo) BeginCorrection(ctx context.Context) (storage.CorrectionUnit, error) {
	r.store.mu.Lock()
	u := &correctionUnit{store: r.store}
	u.snapshot.applications = append([]domain.Application(nil), r.store.applications...)
	u.snapshot.documents = append([]domain.Document(nil), r.store.documents...)
	u.snapshot.notifications = append([]domain.Notification(nil), r.store.notifications...)
	u.snapshot.analyses = append([]domain.AnalysisResult(nil), r.store.analyses...)
	u.snapshot.corrections = append([]*domain.CorrectionRecord(nil), r.store.corrections...)
	return u, nil
}

type correctionUnit struct {
	store *Store
	once  sync.Once

	snapshot struct {
		applications  []domain.Application
		documents     []domain.Document
		notifications []domain.Notification
		analyses      []domain.AnalysisResult
		corrections   []*domain.CorrectionRecord
	}
}

func (u *correctionUnit) DeleteDocuments(ctx context.Context, ids []string) error {
	drop := toSet(ids)
	var kept []domain.Document
	for _, d := range u.store.documents {
		if !drop[d.ID] {
			kept = append(kept, d)
		}
	}
	u.store.documents = kept
	return nil
}

func (u *correctionUnit) DeleteNotifications(ctx context.Context, ids []string) error {
	drop := toSet(ids)
	var kept []domain.Notification
	for _, n := range u.store.notifications {
		if !drop[n.ID] {
			kept = append(kept, n)
		}
	}
	u.store.notifications = kept
	return nil
}

func (u *correctionUnit) DeleteAnalysisResults(ctx context.Context, ids []string) error {
	drop := toSet(ids)
	var kept []domain.AnalysisResult
	for _, a := range u.store.analyses {
		if !drop[a.ID] {
			kept = append(kept, a)
		}
	}
	u.store.analyses = kept
	return nil
}

func (u *correctionUnit) InsertNotification(ctx context.Context, n *domain.Notification) error {
	u.store.notifications = append(u.store.notifications, *n)
	return nil
}

func (u *correctionUnit) UpdateApplicationFlags(ctx context.Context, id string, analysisComplete, documentsReady, notified bool) error {
	for i := range u.store.applications {
		if u.store.applications[i].ID == id {
			u.store.applications[i].AnalysisComplete = analysisComplete
			u.store.applications[i].DocumentsReady = documentsReady
			u.store.applications[i].Notified = notified
			return nil
		}
	}
	return fmt.Errorf("application %s: %w", id, storage.ErrNotFound)
}

func (u *correctionUnit) AddCorrection(ctx context.Context, rec *domain.CorrectionRecord) error {
	cp := *rec
	u.store.corrections = append(u.store.corrections, &cp)
	return nil
}

func (u *correctionUnit) Commit() error {
	u.once.Do(func() {
		u.store.mu.Unlock()
	})
	return nil
}

func (u *correctionUnit) Rollback() error {
	u.once.Do(func() {
		u.store.applications = u.snapshot.applications
		u.store.documents = u.snapshot.documents
		u.store.notifications = u.snapshot.notifications
		u.store.analyses = u.snapshot.analyses
		u.store.corrections = u.snapshot.corrections
		u.store.mu.Unlock()
	})
	return nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
