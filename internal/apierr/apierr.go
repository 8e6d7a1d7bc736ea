// Package apierr defines the closed set of error kinds the item engine can
// raise, per the error-handling design: client errors, not-found errors, and
// an open Other for infrastructure failures. Concurrency errors from the SQL
// engine are folded into the client-error kinds at the call site (surfaced on
// single-item ops, turned into TransactionCancelled reasons inside
// transactions).
package apierr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a Pretender error.
type Kind string

const (
	// KindTableNotFound means a request referenced a logical table that has
	// no row in table_metadata.
	KindTableNotFound Kind = "TableNotFound"
	// KindInvalidExpression means a key-condition, update, or condition
	// expression failed to parse or resolve a placeholder.
	KindInvalidExpression Kind = "InvalidExpression"
	// KindInvalidItem means an item failed input validation (missing key
	// attribute, empty string used as a key, zero-length binary, etc).
	KindInvalidItem Kind = "InvalidItem"
	// KindItemTooLarge means the serialized item exceeds 400,000 bytes.
	KindItemTooLarge Kind = "ItemTooLarge"
	// KindConditionalCheckFailed means a condition expression evaluated to
	// false against the current (or absent) item.
	KindConditionalCheckFailed Kind = "ConditionalCheckFailed"
	// KindTransactionCancelled means a transactWrite or transactGet was
	// rolled back; Reasons carries one entry per enclosed operation.
	KindTransactionCancelled Kind = "TransactionCancelled"
	// KindValidation is a catch-all for malformed requests (bad limits,
	// batch size caps exceeded, unknown index name, ...).
	KindValidation Kind = "ValidationException"
	// KindOther wraps an infrastructure failure (connection loss, disk,
	// unexpected SQL error) that is propagated, never silently retried.
	KindOther Kind = "Other"
)

// CancellationReason describes why one item within a cancelled transaction
// failed.
type CancellationReason struct {
	Code    string
	Message string
}

// Error is the error type returned across the item engine's API boundary.
type Error struct {
	Kind    Kind
	Message string
	Reasons []CancellationReason
	Cause   error
}

func (e *Error) Error() string {
	if e.Kind == KindTransactionCancelled {
		return fmt.Sprintf("%s: %s (%d reasons)", e.Kind, e.Message, len(e.Reasons))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying infrastructure error, if any.
func (e *Error) Unwrap() error { return e.Cause }

// New builds a client-facing error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap turns an infrastructure error into an Other-kind Error.
func Wrap(cause error, format string, args ...any) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: KindOther, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// TableNotFound reports that the named logical table has no metadata row.
func TableNotFound(table string) *Error {
	return New(KindTableNotFound, "table %q not found", table)
}

// ConditionalCheckFailed reports a failed condition expression.
func ConditionalCheckFailed() *Error {
	return New(KindConditionalCheckFailed, "the conditional request failed")
}

// Cancelled builds a TransactionCancelled error from per-item reasons.
func Cancelled(reasons []CancellationReason) *Error {
	return &Error{Kind: KindTransactionCancelled, Message: "transaction cancelled", Reasons: reasons}
}

// Is reports whether err is a Pretender *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err, or KindOther if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}
