// Package orcherr provides the orchestrator's structured error type and the
// error-kind taxonomy used to decide whether a failure is fatal, surfaced to
// the state machine, or silently logged and dropped.
package orcherr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure per the orchestrator's error-handling policy.
type Kind string

const (
	// KindConfiguration covers missing credentials or invalid settings; fatal at startup.
	KindConfiguration Kind = "configuration"
	// KindTransport covers connection failures, send failures, malformed inbound frames.
	KindTransport Kind = "transport"
	// KindProtocol covers unknown events or schema-validation failures; logged and dropped.
	KindProtocol Kind = "protocol"
	// KindTool covers a handler panic, a missing tool, or a missing required special parameter.
	KindTool Kind = "tool"
	// KindCancellation covers deliberate shutdown; never escalates to the Error state.
	KindCancellation Kind = "cancellation"
)

// ErrSessionClosed is returned by operations attempted after shutdown.
var ErrSessionClosed = errors.New("voice orchestrator: session closed")

// ErrBusShutdown is returned by Subscribe after the event bus has shut down.
var ErrBusShutdown = errors.New("voice orchestrator: event bus shut down")

// ErrToolNotFound is the sentinel for an unregistered tool name. Registry.Get
// reports a missing tool through its boolean result, not this error.
var ErrToolNotFound = errors.New("voice orchestrator: tool not found")

// ErrDuplicateTool is returned by Register when a tool name is already taken.
var ErrDuplicateTool = errors.New("voice orchestrator: tool already registered")

// Error is a structured error carrying the component and operation that
// produced it, its Kind, optional structured details, and the wrapped cause.
type Error struct {
	Component string
	Operation string
	Kind      Kind
	Details   map[string]any
	Cause     error
}

// New creates an Error with the given component, operation, kind, and cause.
func New(component, operation string, kind Kind, cause error) *Error {
	return &Error{Component: component, Operation: operation, Kind: kind, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := fmt.Sprintf("[%s:%s] %s", e.Component, e.Operation, e.Kind)
	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}
	return base
}

// Unwrap enables errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails attaches structured metadata and returns the same error for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// IsFatal reports whether an error of this kind should abort session startup.
func IsFatal(err error) bool {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind == KindConfiguration
	}
	return false
}
