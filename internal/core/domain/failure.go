package domain

import "time"

// FailureKind is the closed taxonomy every classified error maps into.
// Kinds are stable identifiers: they key strategy defaults, metrics labels
// and the recovery_statistics table.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureNetworkTimeout
	FailureConnectionReset
	FailureRateLimit
	FailureQuotaExceeded
	FailureStoreConnection
	FailureReferentialViolation
	FailureUniquenessViolation
	FailureDeadlock
	FailureMissingTemplate
	FailureStorageFull
	FailureContentCorruption
	FailureAuthFailure
	FailureQuotaExceededNotify
	FailureInvalidRecipient
	FailureTimeoutWorkflow
	FailureDataInconsistency
	FailureBusinessRule
	FailureOutOfMemory
	FailureDiskFull
	FailurePermissionDenied
)

var failureKindNames = map[FailureKind]string{
	FailureUnknown:              "unknown",
	FailureNetworkTimeout:       "network_timeout",
	FailureConnectionReset:      "connection_reset",
	FailureRateLimit:            "rate_limit",
	FailureQuotaExceeded:        "quota_exceeded",
	FailureStoreConnection:      "store_connection",
	FailureReferentialViolation: "referential_violation",
	FailureUniquenessViolation:  "uniqueness_violation",
	FailureDeadlock:             "deadlock",
	FailureMissingTemplate:      "missing_template",
	FailureStorageFull:          "storage_full",
	FailureContentCorruption:    "content_corruption",
	FailureAuthFailure:          "auth_failure",
	FailureQuotaExceededNotify:  "quota_exceeded_notify",
	FailureInvalidRecipient:     "invalid_recipient",
	FailureTimeoutWorkflow:      "timeout_workflow",
	FailureDataInconsistency:    "data_inconsistency",
	FailureBusinessRule:         "business_rule",
	FailureOutOfMemory:          "out_of_memory",
	FailureDiskFull:             "disk_full",
	FailurePermissionDenied:     "permission_denied",
}

func (k FailureKind) String() string {
	if name, ok := failureKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseFailureKind maps a stored identifier back to its kind.
// Unrecognized identifiers map to FailureUnknown.
func ParseFailureKind(s string) FailureKind {
	for k, name := range failureKindNames {
		if name == s {
			return k
		}
	}
	return FailureUnknown
}

// Retryable reports whether automatic retries make sense for this kind.
// Auth, permission and structural errors never resolve by repeating the
// same call.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureAuthFailure,
		FailurePermissionDenied,
		FailureBusinessRule,
		FailureContentCorruption,
		FailureInvalidRecipient,
		FailureMissingTemplate:
		return false
	}
	return true
}

// Transient reports whether the kind is expected to clear on its own
// within a normal backoff window.
func (k FailureKind) Transient() bool {
	switch k {
	case FailureNetworkTimeout,
		FailureConnectionReset,
		FailureDeadlock,
		FailureStoreConnection:
		return true
	}
	return false
}

// FailureRecord tracks one failed operation invocation across its retries.
type FailureRecord struct {
	ID            string         `json:"id" db:"id"`
	Kind          FailureKind    `json:"kind"`
	OperationName string         `json:"operation_name" db:"operation_name"`
	WorkflowID    string         `json:"workflow_id" db:"workflow_id"`
	Message       string         `json:"message" db:"message"`
	Context       map[string]any `json:"context"`
	Attempts      int            `json:"attempts" db:"attempts"`
	Resolved      bool           `json:"resolved" db:"resolved"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
}
