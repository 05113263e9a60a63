// Package apperr defines the failure taxonomy shared by the store and
// repository layers. Sentinels let the transport layer map internal logic to
// status codes via errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a referenced entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the principal is not allowed to perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict means the entity or link already exists.
	ErrConflict = errors.New("conflict")
	// ErrBackendUnavailable means the remote store could not be reached at
	// startup. It never occurs mid-operation; fallback selection happens once.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrAborted means a transaction exhausted its conflict-retry budget.
	ErrAborted = errors.New("transaction aborted")
)

// ValidationError reports a field that failed an input constraint. It is
// always raised before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
