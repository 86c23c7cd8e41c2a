package consistency

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ductran/recoverd/internal/core/domain"
	"github.com/ductran/recoverd/internal/infra/storage"
)

// correction applies the repair for one issue inside an open unit. It
// returns the table it touched and a short action description for the
// audit row. The validator owns commit and rollback.
type correction func(ctx context.Context, now time.Time, unit storage.CorrectionUnit, iss domain.ConsistencyIssue, s *snapshot) (table, action string, err error)

// corrections maps each correctable issue kind to its repair. Kinds absent
// here are report-only.
func corrections() map[domain.IssueKind]correction {
	return map[domain.IssueKind]correction{
		domain.IssueOrphanedDocument:    deleteOrphanedDocuments,
		domain.IssueOrphanedAnalysis:    deleteOrphanedAnalyses,
		domain.IssueDuplicateDocument:   deleteDuplicateDocuments,
		domain.IssueDanglingReference:   deleteDanglingNotifications,
		domain.IssueFlagContradiction:   recomputeFlags,
		domain.IssueMissingNotification: insertMissingNotifications,
	}
}

func deleteOrphanedDocuments(ctx context.Context, _ time.Time, unit storage.CorrectionUnit, iss domain.ConsistencyIssue, _ *snapshot) (string, string, error) {
	if err := unit.DeleteDocuments(ctx, iss.RecordIDs); err != nil {
		return "documents", "delete orphaned rows", err
	}
	return "documents", "delete orphaned rows", nil
}

func deleteOrphanedAnalyses(ctx context.Context, _ time.Time, unit storage.CorrectionUnit, iss domain.ConsistencyIssue, _ *snapshot) (string, string, error) {
	err := unit.DeleteAnalysisResults(ctx, iss.RecordIDs)
	return "analysis_results", "delete orphaned rows", err
}

func deleteDuplicateDocuments(ctx context.Context, _ time.Time, unit storage.CorrectionUnit, iss domain.ConsistencyIssue, _ *snapshot) (string, string, error) {
	err := unit.DeleteDocuments(ctx, iss.RecordIDs)
	return "documents", "delete duplicates keeping oldest", err
}

func deleteDanglingNotifications(ctx context.Context, _ time.Time, unit storage.CorrectionUnit, iss domain.ConsistencyIssue, _ *snapshot) (string, string, error) {
	err := unit.DeleteNotifications(ctx, iss.RecordIDs)
	return "notifications", "delete dangling rows", err
}

// recomputeFlags rebuilds the gating flags of each affected application
// from the child records that actually exist, so a flag never claims more
// than the data backs.
func recomputeFlags(ctx context.Context, _ time.Time, unit storage.CorrectionUnit, iss domain.ConsistencyIssue, s *snapshot) (string, string, error) {
	for _, id := range iss.RecordIDs {
		analysis := s.hasAnalysis(id)
		docs := analysis && s.hasDocuments(id)
		notified := docs && s.hasNotification(id)
		if err := unit.UpdateApplicationFlags(ctx, id, analysis, docs, notified); err != nil {
			return "applications", "recompute gating flags", err
		}
	}
	return "applications", "recompute gating flags", nil
}

func insertMissingNotifications(ctx context.Context, now time.Time, unit storage.CorrectionUnit, iss domain.ConsistencyIssue, _ *snapshot) (string, string, error) {
	for _, appID := range iss.RecordIDs {
		n := &domain.Notification{
			ID:            uuid.NewString(),
			ApplicationID: appID,
			Channel:       "system",
			CreatedAt:     now,
		}
		if err := unit.InsertNotification(ctx, n); err != nil {
			return "notifications", "insert placeholder record", err
		}
	}
	return "notifications", "insert placeholder record", nil
}
