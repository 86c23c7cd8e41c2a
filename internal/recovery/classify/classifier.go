// Package classify maps heterogeneous errors into the closed failure
// taxonomy. Structured adapters run first; unstructured errors fall back to
// message heuristics.
package classify

import (
	"strings"

	"github.com/ductran/recoverd/internal/core/domain"
)

// Classifier assigns a FailureKind to any error. The zero value is not
// usable; construct with New.
type Classifier struct {
	adapters []Adapter
}

// New returns a classifier with the default adapter chain (store, net).
// Extra adapters run after the defaults, before the text rules.
func New(extra ...Adapter) *Classifier {
	adapters := []Adapter{StoreAdapter{}, NetAdapter{}}
	return &Classifier{adapters: append(adapters, extra...)}
}

// textRule is one substring heuristic. First match wins, so more specific
// patterns must precede broader ones (e.g. "sending quota" before "quota").
type textRule struct {
	kind     domain.FailureKind
	patterns []string
}

var textRules = []textRule{
	{domain.FailureQuotaExceededNotify, []string{"sending quota", "daily send limit", "message quota"}},
	{domain.FailureInvalidRecipient, []string{"invalid recipient", "address rejected", "no such user", "recipient refused"}},
	{domain.FailureRateLimit, []string{"rate limit", "too many requests", "429"}},
	{domain.FailureQuotaExceeded, []string{"quota exceeded", "quota", "plan limit", "usage limit"}},
	{domain.FailureConnectionReset, []string{"connection reset", "broken pipe", "connection closed"}},
	{domain.FailureStoreConnection, []string{"connection refused", "could not connect", "database is locked", "connection pool"}},
	{domain.FailureReferentialViolation, []string{"foreign key", "violates foreign key constraint", "referential integrity"}},
	{domain.FailureUniquenessViolation, []string{"unique constraint", "duplicate key", "already exists"}},
	{domain.FailureDeadlock, []string{"deadlock"}},
	{domain.FailureTimeoutWorkflow, []string{"workflow timed out", "stage timeout", "workflow deadline"}},
	{domain.FailureNetworkTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{domain.FailureMissingTemplate, []string{"template not found", "missing template", "no such template"}},
	{domain.FailureDiskFull, []string{"disk full", "no space left on device"}},
	{domain.FailureStorageFull, []string{"storage full", "bucket full", "storage capacity"}},
	{domain.FailureOutOfMemory, []string{"out of memory", "cannot allocate memory", "oom"}},
	{domain.FailureContentCorruption, []string{"corrupt", "malformed", "invalid encoding", "unexpected eof"}},
	{domain.FailureAuthFailure, []string{"authentication failed", "unauthorized", "invalid credentials", "401", "403", "forbidden"}},
	{domain.FailurePermissionDenied, []string{"permission denied", "access denied", "not permitted"}},
	{domain.FailureDataInconsistency, []string{"inconsistent state", "integrity check", "data inconsistency"}},
	{domain.FailureBusinessRule, []string{"business rule", "precondition failed", "not eligible"}},
}

// Classify is deterministic and total: it never panics and always returns
// a kind. A nil error yields FailureUnknown.
func (c *Classifier) Classify(err error) domain.FailureKind {
	if err == nil {
		return domain.FailureUnknown
	}

	for _, a := range c.adapters {
		if kind, ok := a.Adapt(err); ok {
			return kind
		}
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range textRules {
		for _, p := range rule.patterns {
			if strings.Contains(msg, p) {
				return rule.kind
			}
		}
	}
	return domain.FailureUnknown
}
