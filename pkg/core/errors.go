package core

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrNotFound is returned when a run, trajectory, judgment or memory does not exist
	ErrNotFound = errors.New("not found")

	// ErrStoreClosed is returned when trying to use a closed store
	ErrStoreClosed = errors.New("store is closed")

	// ErrStoreNotInitialized is returned when Init has not been called
	ErrStoreNotInitialized = errors.New("store is not initialized")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidMemory is returned when a memory item fails validation
	ErrInvalidMemory = errors.New("invalid memory item")

	// ErrTooManyIDs is returned when a bulk fetch exceeds Config.MaxBulkIDs
	ErrTooManyIDs = errors.New("too many ids requested")
)

// StoreError wraps errors with operation context
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("reasoningbank: %v", e.Err)
	}
	return fmt.Sprintf("reasoningbank: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps an error with operation context
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// IsNotFound reports whether err signals an absent record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
