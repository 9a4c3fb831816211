package redisearch

import (
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/flowdex/store"
)

// Server error markers that clear up on their own once the node recovers.
var transientMarkers = []string{
	"loading",
	"tryagain",
	"clusterdown",
	"masterdown",
	"readonly",
}

// wrapItemErr maps a raw per-op failure onto the store error taxonomy:
// script conflicts become VersionConflictError, recoverable server states
// wrap ErrUnavailable, memory pressure wraps ErrThrottled, anything else
// stays a permanent command error. Network failures are transient.
func (s *Store) wrapItemErr(id string, err error) error {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}

	msg := re.Error()
	if containsIgnoreCase(msg, "version conflict") {
		return store.NewVersionConflict(id, parseConflictVersion(msg))
	}
	for _, marker := range transientMarkers {
		if containsIgnoreCase(msg, marker) {
			return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
		}
	}
	if containsIgnoreCase(msg, "oom command not allowed") {
		return fmt.Errorf("%w: %w", store.ErrThrottled, err)
	}
	return &Error{Op: OpWrite, Err: err}
}
