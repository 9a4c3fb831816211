// Package store defines the boundary between write pipelines and the
// backends that persist their batches. Backends implement BulkWriter (and
// optionally Scroller for read-back) and wrap their raw failures with the
// package sentinels so the default classifier can tell transient conditions
// from permanent ones.
package store

import "context"

// BulkWriter applies a batch of ops in one round-trip and reports one
// ItemResult per op, index-aligned with the input. A non-nil error means
// the request failed as a whole before per-op outcomes were known
// (connection refused, timeout); no partial results accompany it.
type BulkWriter interface {
	WriteBulk(ctx context.Context, ops []Op) ([]ItemResult, error)
}

// Scroller reads a collection page by page. Pass an empty cursor to start
// and the previous Page's Cursor to continue.
type Scroller interface {
	Scroll(ctx context.Context, cursor string, limit int) (*Page, error)
}
