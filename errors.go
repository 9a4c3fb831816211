package flowdex

import (
	"errors"

	"github.com/kailas-cloud/flowdex/store"
)

// Sentinel errors re-exported from the store boundary.
// Use errors.Is() to check.
var (
	ErrVersionConflict    = store.ErrVersionConflict
	ErrUnavailable        = store.ErrUnavailable
	ErrThrottled          = store.ErrThrottled
	ErrVersionUnsupported = store.ErrVersionUnsupported
)

var (
	// ErrRetriesExhausted marks an item that kept failing transiently
	// until its retry budget ran out. The terminal Result wraps both this
	// sentinel and the last underlying failure.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrInvalidMessage marks a message rejected before any dispatch.
	ErrInvalidMessage = errors.New("invalid message")
)
