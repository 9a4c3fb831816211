package store

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionConflict signals an optimistic concurrency conflict.
	ErrVersionConflict = errors.New("version conflict")
	// ErrUnavailable signals a transient store condition; the op may
	// succeed if dispatched again.
	ErrUnavailable = errors.New("store unavailable")
	// ErrThrottled signals the store shed the op under load.
	ErrThrottled = errors.New("throttled")
	// ErrVersionUnsupported signals the backend cannot honor versioned ops.
	ErrVersionUnsupported = errors.New("versioned writes not supported")
)

// VersionConflictError wraps ErrVersionConflict with the document's current
// stored version.
type VersionConflictError struct {
	ID             string
	CurrentVersion int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s: %s is at version %d", ErrVersionConflict.Error(), e.ID, e.CurrentVersion)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// NewVersionConflict creates a version conflict error for a document.
func NewVersionConflict(id string, currentVersion int64) error {
	return &VersionConflictError{ID: id, CurrentVersion: currentVersion}
}
