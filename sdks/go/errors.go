package mandateauthority

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrAgentKilled is returned when issuance is refused because the
	// calling agent's kill switch is set.
	ErrAgentKilled = errors.New("agent killed")

	// ErrServerUnreachable is returned when the mandate authority
	// server cannot be contacted.
	ErrServerUnreachable = errors.New("server unreachable")
)

// ClientError is the base error type for SDK errors, wrapping the
// server's {statusCode, error, message} envelope (spec §7).
type ClientError struct {
	// Code is the server's machine-readable error kind, e.g. "AGENT_KILLED".
	Code string
	// StatusCode is the HTTP status the server returned.
	StatusCode int
	// Err carries the server's message, or a transport-level cause.
	Err error
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mandateauthority [%s]: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("mandateauthority [%s]", e.Code)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// AgentKilledError is returned when issuance fails because the
// calling agent has been killed.
type AgentKilledError struct {
	Reason string
}

func (e *AgentKilledError) Error() string {
	return fmt.Sprintf("agent is killed: %s", e.Reason)
}

// Is reports whether this error matches the target error, supporting
// errors.Is(err, ErrAgentKilled).
func (e *AgentKilledError) Is(target error) bool {
	return target == ErrAgentKilled
}

// ServerUnreachableError is returned when the server cannot be
// contacted at all (DNS failure, connection refused, timeout).
type ServerUnreachableError struct {
	Cause error
}

func (e *ServerUnreachableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("server unreachable: %v", e.Cause)
	}
	return "server unreachable"
}

func (e *ServerUnreachableError) Unwrap() error {
	return e.Cause
}

func (e *ServerUnreachableError) Is(target error) bool {
	return target == ErrServerUnreachable
}
