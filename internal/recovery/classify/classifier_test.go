package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ductran/recoverd/internal/core/domain"
)

func TestClassify_TextRules(t *testing.T) {
	c := New()

	cases := []struct {
		msg  string
		want domain.FailureKind
	}{
		{"request timed out after 30s", domain.FailureNetworkTimeout},
		{"i/o timeout", domain.FailureNetworkTimeout},
		{"connection reset by peer", domain.FailureConnectionReset},
		{"Rate limit exceeded, retry later", domain.FailureRateLimit},
		{"429 Too Many Requests", domain.FailureRateLimit},
		{"monthly quota exceeded", domain.FailureQuotaExceeded},
		{"could not connect to server", domain.FailureStoreConnection},
		{"insert violates foreign key constraint", domain.FailureReferentialViolation},
		{"duplicate key value", domain.FailureUniquenessViolation},
		{"deadlock detected", domain.FailureDeadlock},
		{"template not found: offer_letter", domain.FailureMissingTemplate},
		{"no space left on device", domain.FailureDiskFull},
		{"storage full", domain.FailureStorageFull},
		{"corrupt archive header", domain.FailureContentCorruption},
		{"authentication failed for user", domain.FailureAuthFailure},
		{"permission denied", domain.FailurePermissionDenied},
		{"daily send limit reached", domain.FailureQuotaExceededNotify},
		{"invalid recipient address", domain.FailureInvalidRecipient},
		{"workflow timed out at stage processing", domain.FailureTimeoutWorkflow},
		{"integrity check failed", domain.FailureDataInconsistency},
		{"candidate not eligible", domain.FailureBusinessRule},
		{"out of memory", domain.FailureOutOfMemory},
		{"something completely different", domain.FailureUnknown},
	}

	for _, tc := range cases {
		got := c.Classify(errors.New(tc.msg))
		if got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.msg, got, tc.want)
		}
	}
}

func TestClassify_Total(t *testing.T) {
	c := New()

	if got := c.Classify(nil); got != domain.FailureUnknown {
		t.Errorf("nil error should classify as unknown, got %s", got)
	}
	if got := c.Classify(errors.New("")); got != domain.FailureUnknown {
		t.Errorf("empty error should classify as unknown, got %s", got)
	}
}

func TestClassify_StoreAdapter(t *testing.T) {
	c := New()

	cases := []struct {
		code string
		want domain.FailureKind
	}{
		{"23503", domain.FailureReferentialViolation},
		{"23505", domain.FailureUniquenessViolation},
		{"40P01", domain.FailureDeadlock},
		{"53100", domain.FailureDiskFull},
		{"53200", domain.FailureOutOfMemory},
		{"08006", domain.FailureStoreConnection},
		{"28P01", domain.FailureAuthFailure},
		{"28000", domain.FailureAuthFailure},
		{"42501", domain.FailurePermissionDenied},
	}

	for _, tc := range cases {
		err := fmt.Errorf("query failed: %w", &pgconn.PgError{Code: tc.code, Message: "boom"})
		if got := c.Classify(err); got != tc.want {
			t.Errorf("SQLSTATE %s = %s, want %s", tc.code, got, tc.want)
		}
	}
}

// Unmapped SQLSTATEs must not be claimed as store_connection; they fall
// through to the text rules so an auth or permission message still lands
// on a never-retried kind.
func TestClassify_StoreAdapterFallthrough(t *testing.T) {
	c := New()

	err := fmt.Errorf("query failed: %w", &pgconn.PgError{Code: "42601", Message: "syntax error at or near SELECT"})
	if got := c.Classify(err); got == domain.FailureStoreConnection {
		t.Errorf("unmapped SQLSTATE 42601 = %s, must not be store_connection", got)
	}

	err = fmt.Errorf("query failed: %w", &pgconn.PgError{Code: "42601", Message: "permission denied for table applications"})
	if got := c.Classify(err); got != domain.FailurePermissionDenied {
		t.Errorf("fallthrough with permission message = %s, want permission_denied", got)
	}
}

func TestClassify_NetAdapter(t *testing.T) {
	c := New()

	if got := c.Classify(fmt.Errorf("write: %w", syscall.ECONNRESET)); got != domain.FailureConnectionReset {
		t.Errorf("ECONNRESET = %s, want connection_reset", got)
	}
	if got := c.Classify(context.DeadlineExceeded); got != domain.FailureNetworkTimeout {
		t.Errorf("deadline exceeded = %s, want network_timeout", got)
	}

	var timeoutErr net.Error = &timeoutError{}
	if got := c.Classify(timeoutErr); got != domain.FailureNetworkTimeout {
		t.Errorf("net timeout = %s, want network_timeout", got)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify_Deterministic(t *testing.T) {
	c := New()
	err := errors.New("rate limit and timeout in one message")

	first := c.Classify(err)
	for i := 0; i < 10; i++ {
		if got := c.Classify(err); got != first {
			t.Fatalf("classification not deterministic: %s vs %s", got, first)
		}
	}
}
