package application

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when no valid credential is available;
	// the caller must sign in again before retrying.
	ErrNotAuthenticated = errors.New("application: not authenticated")
	// ErrUpstreamFetchFailed is returned when the calendar provider fails.
	// Retrying with backoff is safe.
	ErrUpstreamFetchFailed = errors.New("application: upstream fetch failed")
	// ErrStorage is returned when the store cannot be read or written.
	// Retrying is safe.
	ErrStorage = errors.New("application: storage error")
	// ErrNotFound is returned when the requested session does not exist.
	ErrNotFound = errors.New("application: not found")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// StorageError wraps a repository failure. It matches ErrStorage.
type StorageError struct {
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying repository error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// UpstreamError wraps a calendar provider failure. It matches
// ErrUpstreamFetchFailed.
type UpstreamError struct {
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("calendar fetch: %v", e.Err)
}

// Unwrap returns the underlying provider error.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrUpstreamFetchFailed.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamFetchFailed
}
