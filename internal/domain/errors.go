package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced to callers. Transient infrastructure failures are
// not listed here: those are retried by the completion client and the queue,
// never returned from the coordinator API.
var (
	// ErrValidation marks caller mistakes that must never be retried
	// (run over an empty project, retry of a non-failed judgment).
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks lookups of records that do not exist in the
	// requested scope.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks deletes of personas/offers still referenced by
	// judgments. Surfaced as its own kind, not a generic failure.
	ErrConflict = errors.New("conflict")
)

// Validationf wraps ErrValidation with a specific reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// NotFoundf wraps ErrNotFound with a specific reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// Conflictf wraps ErrConflict with a specific reason.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}
