package aura

import (
	"errors"
	"fmt"
)

// FailureKind classifies a session failure. Every kind except
// FailureSerialization moves the session to StateError; serialization
// problems on outbound frames are logged and otherwise ignored.
type FailureKind int

const (
	FailurePermissionDenied FailureKind = iota
	FailureCredentialFetch
	FailureNegotiation
	FailureTransport
	FailureSerialization
)

func (k FailureKind) String() string {
	switch k {
	case FailurePermissionDenied:
		return "permission_denied"
	case FailureCredentialFetch:
		return "credential_fetch_failed"
	case FailureNegotiation:
		return "negotiation_failed"
	case FailureTransport:
		return "transport_failed"
	case FailureSerialization:
		return "serialization_failed"
	default:
		return "unknown"
	}
}

// SessionError carries the failure classification alongside the cause,
// so the reconnection policy can tell retryable failures from terminal ones.
type SessionError struct {
	Kind FailureKind
	Msg  string
	Err  error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func failure(kind FailureKind, msg string, err error) *SessionError {
	return &SessionError{Kind: kind, Msg: msg, Err: err}
}

// FailureKindOf extracts the classification from err, defaulting to
// FailureTransport for errors raised outside the session core.
func FailureKindOf(err error) FailureKind {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Kind
	}
	return FailureTransport
}
