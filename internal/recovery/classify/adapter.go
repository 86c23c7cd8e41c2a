package classify

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ductran/recoverd/internal/core/domain"
)

// Adapter maps one external error source into the taxonomy. Adapters run
// before the text heuristics so structured errors never depend on message
// wording. An adapter returns ok=false when the error is not its concern.
type Adapter interface {
	Adapt(err error) (kind domain.FailureKind, ok bool)
}

// StoreAdapter classifies persistence-layer errors by SQLSTATE.
type StoreAdapter struct{}

func (StoreAdapter) Adapt(err error) (domain.FailureKind, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return domain.FailureUnknown, false
	}

	switch pgErr.Code {
	case "23503": // foreign_key_violation
		return domain.FailureReferentialViolation, true
	case "23505": // unique_violation
		return domain.FailureUniquenessViolation, true
	case "40P01": // deadlock_detected
		return domain.FailureDeadlock, true
	case "53100": // disk_full
		return domain.FailureDiskFull, true
	case "53200": // out_of_memory
		return domain.FailureOutOfMemory, true
	case "57014": // query_canceled
		return domain.FailureNetworkTimeout, true
	}
	if len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08": // connection_exception family
			return domain.FailureStoreConnection, true
		case "28": // invalid_authorization_specification family
			return domain.FailureAuthFailure, true
		}
	}
	if pgErr.Code == "42501" { // insufficient_privilege
		return domain.FailurePermissionDenied, true
	}
	// Unmapped SQLSTATEs fall through to the text rules.
	return domain.FailureUnknown, false
}

// NetAdapter classifies transport errors from net and syscall.
type NetAdapter struct{}

func (NetAdapter) Adapt(err error) (domain.FailureKind, bool) {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return domain.FailureConnectionReset, true
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return domain.FailureStoreConnection, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureNetworkTimeout, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.FailureNetworkTimeout, true
		}
		return domain.FailureConnectionReset, true
	}
	return domain.FailureUnknown, false
}
