package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving the query pipeline matches exactly one of
// these through errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrDatabase       = errors.New("database error")
	ErrInternal       = errors.New("internal error")
)

// Error is a classified pipeline error.
// Message is safe to show to the caller; Err holds the full cause and is only
// ever logged.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the kind and the cause, so callers can match the kind
// with errors.Is and still reach driver errors with errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation reports a malformed caller-supplied argument.
func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a well-formed lookup that matched no rows.
func NotFound(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// SchemaMismatch reports that every fallback tier of a query failed.
func SchemaMismatch(statement string, cause error) error {
	return &Error{Kind: ErrSchemaMismatch, Message: statement, Err: cause}
}

// Database wraps a transport or connection failure.
func Database(cause error) error {
	if cause == nil {
		return nil
	}
	var appErr *Error
	if errors.As(cause, &appErr) {
		return cause
	}
	return &Error{Kind: ErrDatabase, Err: cause}
}

// Internal wraps any other failure, including pipeline logic faults.
func Internal(cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: ErrInternal, Err: cause}
}

// IsExpected returns true for outcomes that are surfaced to the caller with
// their own message (validation failures and missing entities).
func IsExpected(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}

// UserMessage returns the caller-safe message of an expected error.
// Returns "" for anything else.
func UserMessage(err error) string {
	if !IsExpected(err) {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}

// Code returns a stable snake_case code for logs and metrics.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "entity_not_found"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrDatabase):
		return "database_error"
	default:
		return "internal_error"
	}
}
