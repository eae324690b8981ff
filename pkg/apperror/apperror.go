// Package apperror defines the error kinds shared by the content store, the
// journey repository and the turn processor.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrStaleState  = errors.New("stale state")
	ErrConflict    = errors.New("conflict")
	ErrConsistency = errors.New("consistency violation")
)

type AppError struct {
	Err     error  // one of the sentinel kinds above
	Message string // operator-facing description
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, key),
	}
}

// StaleState reports a conditional write that lost to a concurrent writer.
func StaleState(resource, key string) *AppError {
	return &AppError{
		Err:     ErrStaleState,
		Message: fmt.Sprintf("%s %s is no longer active", resource, key),
	}
}

func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict: %s", resource, key),
	}
}

// Consistency reports a broken invariant, such as two records claiming a key
// documented as unique.
func Consistency(format string, args ...any) *AppError {
	return &AppError{
		Err:     ErrConsistency,
		Message: fmt.Sprintf(format, args...),
	}
}

// Kind returns the sentinel kind wrapped by err, or nil when err is not one of
// the known kinds.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrStaleState, ErrConflict, ErrConsistency} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
