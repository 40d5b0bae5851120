// Package errors implements the error taxonomy from spec.md §7: six
// kinds with distinct propagation policy (retry, mark-connection-error,
// self-heal, fail-the-unit, drop-the-action, fail-without-corrupting).
// Callers branch on Kind via errors.As, not string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies why an operation failed, and therefore how the
// caller should react.
type Kind string

const (
	// KindTransient covers 429/5xx/timeout: retry with backoff, then
	// fail the unit (not the whole pass) if the retry budget is spent.
	KindTransient Kind = "transient"
	// KindPermission covers 401/403/invalid_grant: mark the connection
	// "error" and fall back to partial, stale-marked context.
	KindPermission Kind = "permission"
	// KindNotFound covers 404 and Calendar's 410 Gone: self-heal by
	// pruning the stale reference and retrying with a fresh one.
	KindNotFound Kind = "not_found"
	// KindMalformed covers unparseable LLM output: fail the enclosing
	// unit, never persist partial artifacts.
	KindMalformed Kind = "malformed"
	// KindInvariant covers a structurally invalid action (bad UUID,
	// missing required field): drop the action, emit a warning.
	KindInvariant Kind = "invariant"
	// KindInternal covers DB/transaction failures: fail the unit
	// without corrupting state.
	KindInternal Kind = "internal"
)

// Error is a Kind-tagged error. Unwrap exposes Cause so errors.Is/As
// chains through to the underlying cause.
type Error struct {
	Kind      Kind
	Operation string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s failed: %s", e.Kind, e.Operation, e.Cause)
	}
	return fmt.Sprintf("%s: %s failed", e.Kind, e.Operation)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause as a Kind-tagged Error for the named operation.
func New(kind Kind, operation string, cause error) *Error {
	return &Error{Kind: kind, Operation: operation, Cause: cause}
}

// Transient, Permission, NotFound, Malformed, Invariant and Internal are
// constructors for the six kinds, used at call sites so the Kind is
// visible without reading a string literal.
func Transient(operation string, cause error) *Error { return New(KindTransient, operation, cause) }
func Permission(operation string, cause error) *Error { return New(KindPermission, operation, cause) }
func NotFound(operation string, cause error) *Error   { return New(KindNotFound, operation, cause) }
func Malformed(operation string, cause error) *Error  { return New(KindMalformed, operation, cause) }
func Invariant(operation string, cause error) *Error  { return New(KindInvariant, operation, cause) }
func Internal(operation string, cause error) *Error   { return New(KindInternal, operation, cause) }

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether the propagation policy for err's kind calls
// for a retry with backoff before giving up (spec §7.1).
func Retryable(err error) bool {
	return Is(err, KindTransient)
}
