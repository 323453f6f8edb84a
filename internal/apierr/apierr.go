// Package apierr defines the error-kind taxonomy from spec §7 and a
// structured error type that inbound transports map to the
// {statusCode, error, message} envelope. It is grounded on the
// teacher's PolicyDenyError pattern in its former proxy package: a
// typed error carrying machine-readable fields plus a human reason,
// unwrapping to a sentinel so callers can still use errors.Is.
package apierr

import "errors"

// Kind enumerates the error kinds from spec §7.
type Kind string

const (
	KindInvalidInput          Kind = "INVALID_INPUT"
	KindUnauthorized          Kind = "UNAUTHORIZED"
	KindForbidden             Kind = "FORBIDDEN"
	KindNotFound              Kind = "NOT_FOUND"
	KindAgentInactive         Kind = "AGENT_INACTIVE"
	KindAgentKilled           Kind = "AGENT_KILLED"
	KindConflict              Kind = "CONFLICT"
	KindStoreUnavailable      Kind = "STORE_UNAVAILABLE"
	KindInconsistentSettlement Kind = "INCONSISTENT_SETTLEMENT"
	KindInvalidContext        Kind = "INVALID_CONTEXT"
	KindInvalidPattern        Kind = "INVALID_PATTERN"
)

// Sentinel errors so callers can test with errors.Is without importing
// the Kind-bearing *Error wrapper.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Error is a structured, user-safe API error. Message is sanitized for
// direct client exposure: it must never carry stack traces, internal
// identifiers, or store-specific detail, per spec §7.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// New creates an Error of the given kind with a client-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind, keeping cause for logging
// via Unwrap while never including it in the user-visible Message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindStoreUnavailable:
		return ErrStoreUnavailable
	}
	return e.cause
}

// HTTPStatus maps a Kind to the HTTP status code an inbound transport
// should use. Kept here (rather than in the transport package) so
// every transport maps kinds identically.
func (e *Error) HTTPStatus() int {
	return httpStatus(e.Kind)
}
