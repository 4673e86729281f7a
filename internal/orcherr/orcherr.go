// Package orcherr defines the error taxonomy shared by every orchestrator
// component. Components never panic on expected failures; they return an
// *Error carrying one of the Kind values below so callers (the control
// plane, the CLI, the health loop) can translate it without string
// matching.
package orcherr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy buckets from the
// orchestrator's error handling design.
type Kind string

const (
	NotFound              Kind = "not_found"
	AlreadyExists         Kind = "already_exists"
	Conflict              Kind = "conflict"
	InvalidConfiguration  Kind = "invalid_configuration"
	SpawnFailed           Kind = "spawn_failed"
	TransportError        Kind = "transport_error"
	Timeout               Kind = "timeout"
	ProtocolError         Kind = "protocol_error"
	ToolExecutionError    Kind = "tool_execution_error"
	RepositoryError       Kind = "repository_error"
	RegistryError         Kind = "registry_error"
	QueryError            Kind = "query_error"
)

// Error is the concrete error type returned by orchestrator components.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error wrapping cause, formatting message with args like fmt.Sprintf.
func Wrap(kind Kind, cause error, message string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(message, args...), Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
