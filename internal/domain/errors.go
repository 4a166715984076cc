package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when no lobby exists for a session ID.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrParticipantNotFound is returned when a user acts before joining.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrEmptyUserID rejects join/leave calls without a user identity.
	ErrEmptyUserID = errors.New("user id must not be empty")
	// ErrSessionClosed rejects joins to completed or cancelled sessions.
	ErrSessionClosed = errors.New("session is no longer joinable")
	// ErrBadJoinToken rejects joins with a wrong or missing join token.
	ErrBadJoinToken = errors.New("invalid join token")
	// ErrAuthenticationRequired mirrors an upstream 401; never retried automatically.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrPermissionDenied mirrors an upstream 403 or a non-host action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStaleFetch marks a fetch response superseded by a newer local mutation.
	// It is an internal ordering safeguard, never surfaced to users.
	ErrStaleFetch = errors.New("stale fetch discarded")
)

// FailureKind classifies engine failures for callers and the notification sink.
type FailureKind string

const (
	FailAuthenticationRequired FailureKind = "authentication_required"
	FailPermissionDenied       FailureKind = "permission_denied"
	FailTransientNetwork       FailureKind = "transient_network"
	FailInvalidTransition      FailureKind = "invalid_transition"
	FailStaleFetch             FailureKind = "stale_fetch"
)

// TransientError wraps a network-level failure on join/leave/fetch. The next
// poll cycle retries naturally via re-fetch, so callers should not retry inline.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// InvalidTransitionError reports a session status change that violates the
// scheduled -> active -> completed ordering.
type InvalidTransitionError struct {
	From SessionStatus
	To   SessionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid session transition %s -> %s", e.From, e.To)
}

// Classify maps an error to its FailureKind. Unrecognized errors are treated
// as transient so the poll loop keeps converging.
func Classify(err error) FailureKind {
	var transition *InvalidTransitionError
	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		return FailAuthenticationRequired
	case errors.Is(err, ErrPermissionDenied):
		return FailPermissionDenied
	case errors.Is(err, ErrStaleFetch):
		return FailStaleFetch
	case errors.As(err, &transition):
		return FailInvalidTransition
	default:
		return FailTransientNetwork
	}
}
