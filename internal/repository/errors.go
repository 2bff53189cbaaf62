package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrNotPending is returned when completing a prediction that already has an outcome
	ErrNotPending = errors.New("prediction is not pending")
	// ErrStorageUnavailable matches any StorageError that may succeed on retry
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// StorageError wraps a persistence failure with the operation that caused it
type StorageError struct {
	Op        string
	Err       error
	Temporary bool
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrStorageUnavailable) match retryable failures
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable && e.Temporary
}

// Retryable reports whether the operation may succeed if retried
func (e *StorageError) Retryable() bool {
	return e.Temporary
}

// NewStorageError wraps err for op, classifying network failures, timeouts and
// errors exposing Temporary() as retryable
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err, Temporary: isTemporary(err)}
}

// IsRetryable reports whether err carries a retryable storage failure
func IsRetryable(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Retryable()
}

func isTemporary(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}
