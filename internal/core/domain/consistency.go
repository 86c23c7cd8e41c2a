package domain

import "time"

// IssueKind identifies the cross-record invariant a consistency check found
// violated.
type IssueKind string

const (
	IssueOrphanedDocument    IssueKind = "orphaned_document"
	IssueOrphanedAnalysis    IssueKind = "orphaned_analysis"
	IssueMissingDocuments    IssueKind = "missing_documents"
	IssueDuplicateDocument   IssueKind = "duplicate_document"
	IssueDanglingReference   IssueKind = "dangling_reference"
	IssueStaleApplication    IssueKind = "stale_application"
	IssueFlagContradiction   IssueKind = "flag_contradiction"
	IssueStalledAnalysis     IssueKind = "stalled_analysis"
	IssueMissingNotification IssueKind = "missing_notification"
	IssueTimestampOrder      IssueKind = "timestamp_order"
)

// Severity buckets a consistency issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// ConsistencyIssue is one detected invariant violation. Produced fresh on
// every validation run; only the validation log persists it.
type ConsistencyIssue struct {
	Kind        IssueKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	RecordIDs   []string  `json:"record_ids"`
	Correctable bool      `json:"correctable"`
	Suggested   string    `json:"suggested_action"`
	DetectedAt  time.Time `json:"detected_at"`
}

// CorrectionRecord is the audit row written for every attempted correction,
// successful or not.
type CorrectionRecord struct {
	RunID     string    `json:"run_id" db:"run_id"`
	Kind      IssueKind `json:"kind"`
	TableName string    `json:"table_name" db:"table_name"`
	RecordIDs []string  `json:"record_ids"`
	Action    string    `json:"action" db:"action"`
	Success   bool      `json:"success" db:"success"`
	AppliedAt time.Time `json:"applied_at" db:"applied_at"`
}

// ValidationLogEntry is the persisted row summarizing one issue of one
// validation run.
type ValidationLogEntry struct {
	RunID         string    `json:"run_id" db:"run_id"`
	Kind          IssueKind `json:"issue_kind" db:"issue_kind"`
	Severity      Severity  `json:"severity" db:"severity"`
	Description   string    `json:"description" db:"description"`
	AffectedCount int       `json:"affected_count" db:"affected_count"`
	Correctable   bool      `json:"correctable" db:"correctable"`
	Corrected     bool      `json:"corrected" db:"corrected"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// HealthStatus is the derived verdict of a validation run.
type HealthStatus string

const (
	HealthExcellent        HealthStatus = "excellent"
	HealthGood             HealthStatus = "good"
	HealthMinorIssues      HealthStatus = "minor_issues"
	HealthMultipleWarnings HealthStatus = "multiple_warnings"
	HealthCritical         HealthStatus = "critical"
)

// ValidationReport is the result of one validator run.
type ValidationReport struct {
	RunID       string             `json:"run_id"`
	WorkflowID  string             `json:"workflow_id,omitempty"`
	Issues      []ConsistencyIssue `json:"issues"`
	Corrections []CorrectionRecord `json:"corrections_applied"`
	Status      HealthStatus       `json:"overall_status"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
}

// DeriveHealth computes the overall verdict from a run's issues.
// Any critical issue wins, even when correctable.
func DeriveHealth(issues []ConsistencyIssue) HealthStatus {
	if len(issues) == 0 {
		return HealthExcellent
	}
	warnings := 0
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityCritical:
			return HealthCritical
		case SeverityWarning:
			warnings++
		}
	}
	switch {
	case warnings > 5:
		return HealthMultipleWarnings
	case warnings >= 1:
		return HealthMinorIssues
	default:
		return HealthGood
	}
}
