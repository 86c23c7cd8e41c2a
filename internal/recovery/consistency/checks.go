package consistency

import (
	"fmt"
	"sort"
	"time"

	"github.com/ductran/recoverd/internal/core/domain"
)

// snapshot is the point-in-time view of the workflow tables a run operates
// on. Checks are pure functions over it.
type snapshot struct {
	apps     []domain.Application
	appByID  map[string]domain.Application
	docs     []domain.Document
	notifs   []domain.Notification
	analyses []domain.AnalysisResult
}

func (s *snapshot) hasDocuments(appID string) bool {
	for _, d := range s.docs {
		if d.ApplicationID == appID {
			return true
		}
	}
	return false
}

func (s *snapshot) hasNotification(appID string) bool {
	for _, n := range s.notifs {
		if n.ApplicationID == appID {
			return true
		}
	}
	return false
}

func (s *snapshot) hasAnalysis(appID string) bool {
	for _, a := range s.analyses {
		if a.ApplicationID == appID {
			return true
		}
	}
	return false
}

// check inspects the snapshot and reports zero or more issues. Checks are
// independent; a run executes all of them in order.
type check func(now time.Time, cfg Config, s *snapshot) []domain.ConsistencyIssue

func allChecks() []check {
	return []check{
		checkOrphanedDocuments,
		checkOrphanedAnalyses,
		checkMissingDocuments,
		checkDuplicateDocuments,
		checkDanglingNotifications,
		checkStaleApplications,
		checkFlagContradictions,
		checkStalledAnalyses,
		checkMissingNotifications,
		checkTimestampOrder,
	}
}

func issue(kind domain.IssueKind, sev domain.Severity, desc string, ids []string, correctable bool, suggested string, now time.Time) domain.ConsistencyIssue {
	return domain.ConsistencyIssue{
		Kind:        kind,
		Severity:    sev,
		Description: desc,
		RecordIDs:   ids,
		Correctable: correctable,
		Suggested:   suggested,
		DetectedAt:  now,
	}
}

// checkOrphanedDocuments flags documents whose application no longer
// exists.
func checkOrphanedDocuments(now time.Time, cfg Config, s *snapshot) []domain.ConsistencyIssue {
	var ids []string
	for _, d := range s.docs {
		if _, ok := s.appByID[d.ApplicationID]; !ok {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return []domain.ConsistencyIssue{issue(
		domain.IssueOrphanedDocument,
		domain.SeverityCritical,
		fmt.Sprintf("%d document(s) reference missing applications", len(ids)),
		ids,
		true,
		"delete orphaned documents",
		now,
	)}
}

// checkOrphanedAnalyses flags analysis rows whose application no longer
// exists.
func checkOrphanedAnalyses(now time.Time, cfg Config, s *snapshot) []domain.ConsistencyIssue {
	var ids []string
	for _, a := range s.analyses {
		if _, ok := s.appByID[a.ApplicationID]; !ok {
			ids = append(ids, a.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return []domain.ConsistencyIssue{issue(
		domain.IssueOrphanedAnalysis,
		domain.SeverityCritical,
		fmt.Sprintf("%d analysis result(s) reference missing applications", len(ids)),
		ids,
		true,
		"delete orphaned analysis results",
		now,
	)}
}

// checkMissingDocuments flags analyzed applications that still have no
// documents after the grace period.
func checkMissingDocuments(now time.Time, cfg Config, s *snapshot) []domain.ConsistencyIssue {
	var ids []string
	for _, app := range s.apps {
		if !app.AnalysisComplete {
			continue
		}
		if now.Sub(app.CreatedAt) < cfg.DocumentGrace {
			continue
		}
		if !s.hasDocuments(app.ID) {
			ids = append(ids, app.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return []domain.ConsistencyIssue{issue(
		domain.IssueMissingDocuments,
		domain.SeverityWarning,
		fmt.Sprintf("%d analyzed application(s) have no documents past the grace period", len(ids)),
		ids,
		false,
		"regenerate documents through the workflow driver",
		now,
	)}
}

// checkDuplicateDocuments flags extra documents for the same
// (application, kind) pair. The oldest document is kept.
func checkDuplicateDocuments(now time.Time, cfg Config, s *snapshot) []domain.ConsistencyIssue {
	groups := make(map[string][]domain.Document)
	for _, d := range s.docs {
		key := d.ApplicationID + "|" + d.Kind
		groups[key] = append(groups[key], d)
	}

	var dupes []string
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})
		for _, d := range group[1:] {
			dupes = append(dupes, d.ID)
		}
	}
	if len(dupes) == 0 {
		return nil
	}
	sort.Strings(dupes)
	return []domain.ConsistencyIssue{issue(
		domain.IssueDuplicateDocument,
		domain.SeverityWarning,
		fmt.Sprintf("%d duplicate document(s) for the same application and kind", len(dupes)),
		dupes,
		true,
		"delete duplicates, keeping the oldest",
		now,
	)}
}

// checkDanglingNotifications flags notification rows referencing missing
// applications.
func checkDanglingNotifications(now time.Time, cfg Config, s *snapshot) []domain.ConsistencyIssue {
	var ids []string
	for _, n := range s.notifs {
		if _, ok := s.appByID[n.ApplicationID]; !ok {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return []domain.ConsistencyIssue{issue(
		domain.IssueDanglingReference,
		domain.SeverityCritical,
		fmt.Sprintf("%d notification(s) reference missing applications", len(ids)),
		ids,
		true,
		"delete dangling notifications",
		now,
	)}
}

// checkStaleApplications flags applications with no activity at all beyond
// the retention window. Informational only.
func checkStaleApplications(now time.Time, cfg Config, s *snapshot) []domain.ConsistencyIssue {
	var ids []string
	for _, app := range s.apps {
		if now.Sub(app.CreatedAt) < cfg.RetentionWindow {
			continue
		}
		if !s.hasDocuments(app.ID) && !s.hasNotification(app.ID) && !s.hasAnalysis(app.ID) {
			ids = append(ids, app.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return []domain.ConsistencyIssue{issue(
		domain.IssueStaleApplication,
		domain.SeverityInfo,
		fmt.Sprintf("%d application(s) unused beyond the retention window", len(ids)),
		ids,
		false,
		"archive or delete through the workflow driver",
		now,
	)}
}

// checkFlagContradictions flags gating flags set while their prerequisite
// is false, and completion flags with no backing record. A completion flag
// claiming data that does not exist is critical.
func checkFlagContradictions(now time.Time, cfg Config, s *snapshot) []domain.ConsistencyIssue {
	var issues []domain.ConsistencyIssue
	var gating []string
	var claiming []string
	for _, app := range s.apps {
		if (app.DocumentsReady && !app.AnalysisComplete) || (app.Notified && !app.DocumentsReady) {
			gating = append(gating, app.ID)
			continue
		}
		if app.AnalysisComplete && !s.hasAnalysis(app.ID) {
			claiming = append(claiming, app.ID)
		}
	}
	if len(gating) > 0 {
		issues = append(issues, issue(
			domain.IssueFlagContradiction,
			domain.SeverityWarning,
			fmt.Sprintf("%d application(s) have a gating flag set without its prerequisite", len(gating)),
			gating,
			true,
			"recompute flags from the present child records",
			now,
		))
	}
	if len(claiming) > 0 {
		issues = append(issues, issue(
			domain.IssueFlagContradiction,
			domain.SeverityCritical,
			fmt.Sprintf("%d application(s) claim completed analysis with no analysis data", len(claiming)),
			claiming,
			true,
			"recompute flags from the present child records",
			now,
		))
	}
	return issues
}

// checkStalledAnalyses flags applications whose analysis has been pending
// longer than the stall timeout.
func checkStalledAnalyses(now time.Time, cfg Config, s *snapshot) []domain.ConsistencyIssue {
	var ids []string
	for _, app := range s.apps {
		if app.AnalysisComplete {
			continue
		}
		if now.Sub(app.CreatedAt) >= cfg.StallTimeout {
			ids = append(ids, app.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return []domain.ConsistencyIssue{issue(
		domain.IssueStalledAnalysis,
		domain.SeverityWarning,
		fmt.Sprintf("%d application(s) stalled before analysis for over %s", len(ids), cfg.StallTimeout),
		ids,
		false,
		"re-run analysis through the workflow driver",
		now,
	)}
}

// checkMissingNotifications flags applications marked notified with no
// notification row to show for it.
func checkMissingNotifications(now time.Time, cfg Config, s *snapshot) []domain.ConsistencyIssue {
	var ids []string
	for _, app := range s.apps {
		if app.Notified && !s.hasNotification(app.ID) {
			ids = append(ids, app.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return []domain.ConsistencyIssue{issue(
		domain.IssueMissingNotification,
		domain.SeverityWarning,
		fmt.Sprintf("%d notified application(s) have no notification record", len(ids)),
		ids,
		true,
		"insert a placeholder notification record",
		now,
	)}
}

// checkTimestampOrder flags children created before their parent.
func checkTimestampOrder(now time.Time, cfg Config, s *snapshot) []domain.ConsistencyIssue {
	var ids []string
	for _, d := range s.docs {
		if app, ok := s.appByID[d.ApplicationID]; ok && d.CreatedAt.Before(app.CreatedAt) {
			ids = append(ids, d.ID)
		}
	}
	for _, n := range s.notifs {
		if app, ok := s.appByID[n.ApplicationID]; ok && n.CreatedAt.Before(app.CreatedAt) {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return []domain.ConsistencyIssue{issue(
		domain.IssueTimestampOrder,
		domain.SeverityWarning,
		fmt.Sprintf("%d child record(s) created before their parent application", len(ids)),
		ids,
		false,
		"inspect clock skew or import ordering",
		now,
	)}
}
