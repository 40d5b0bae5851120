// Package errors provides the generic operation-error wrapper used
// across the orchestrator's infrastructure-facing code (cache, stores,
// outbound clients). Domain-level error classification lives in
// internal/errors.
package errors

import "fmt"

// OperationError describes a failed operation with enough context to
// diagnose it without parsing a free-form string.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("failed to %s", e.Operation)
	if e.Component != "" {
		msg += fmt.Sprintf(", component: %s", e.Component)
	}
	if e.Resource != "" {
		msg += fmt.Sprintf(", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(", cause: %s", e.Cause)
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo builds the common two-field case: an action plus its cause.
func FailedTo(action string, cause error) error {
	return &OperationError{Operation: action, Cause: cause}
}

// FailedToOn builds the case where the failing resource is known.
func FailedToOn(action, component, resource string, cause error) error {
	return &OperationError{Operation: action, Component: component, Resource: resource, Cause: cause}
}
