package graph

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by point lookups that miss. Callers treat it as
// "no data", not as a failure.
var ErrNotFound = errors.New("not found")

// ErrLockConflict is returned when a second writer attempts to open the store
// for mutation while another process holds the write lock. Callers retry with
// backoff or fall back to read-only; they must not busy-wait.
var ErrLockConflict = errors.New("write lock held by another process")

// StorageError wraps a persistence-layer failure. It is fatal to the calling
// operation and must never be converted into an empty-but-successful result.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err with the failing operation name.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}
