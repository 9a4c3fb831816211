package flowdex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/flowdex/internal/metrics"
	"github.com/kailas-cloud/flowdex/store"
)

// Flow is a batched write pipeline over a store.BulkWriter. Messages read
// from the input channel are grouped into batches of at most BatchSize,
// dispatched as single bulk requests and re-dispatched on transient
// failures until the retry budget runs out; every accepted message
// resolves to exactly one Result on the output channel.
//
// A Flow is reusable: each Run call starts an independent pipeline.
type Flow[T, P any] struct {
	writer   store.BulkWriter
	cfg      FlowConfig
	classify store.Classifier
	marshal  func(*T) ([]byte, error)
	limiter  *rate.Limiter
	log      *zap.Logger
	met      *metrics.Flow
}

// NewFlow validates cfg and returns a Flow writing through writer.
func NewFlow[T, P any](writer store.BulkWriter, cfg FlowConfig) (*Flow[T, P], error) {
	if writer == nil {
		return nil, errors.New("flowdex: writer required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("flowdex: %w", err)
	}
	return &Flow[T, P]{
		writer:   writer,
		cfg:      cfg,
		classify: store.DefaultClassifier,
		marshal:  func(v *T) ([]byte, error) { return json.Marshal(v) },
		log:      zap.NewNop(),
	}, nil
}

// WithClassifier replaces the classifier consulted for per-item failures.
// Whole-request transport failures stay retryable regardless.
func (f *Flow[T, P]) WithClassifier(c store.Classifier) *Flow[T, P] {
	if c != nil {
		f.classify = c
	}
	return f
}

// WithMarshaler replaces the payload serializer (JSON by default).
func (f *Flow[T, P]) WithMarshaler(m func(*T) ([]byte, error)) *Flow[T, P] {
	if m != nil {
		f.marshal = m
	}
	return f
}

// WithLogger attaches a logger for dispatch-cycle diagnostics.
func (f *Flow[T, P]) WithLogger(l *zap.Logger) *Flow[T, P] {
	if l != nil {
		f.log = l
	}
	return f
}

// WithMetrics publishes pipeline metrics under the given flow name,
// registering the instruments with reg on first use.
func (f *Flow[T, P]) WithMetrics(reg prometheus.Registerer, name string) *Flow[T, P] {
	metrics.RegisterFlowMetrics(reg)
	f.met = metrics.NewFlow(name)
	return f
}

// WithRateLimit caps dispatches at n bulk requests per second, retries
// included. Zero or negative n leaves the flow unlimited.
func (f *Flow[T, P]) WithRateLimit(n float64) *Flow[T, P] {
	if n > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(n), 1)
	}
	return f
}

// Run starts the pipeline. It consumes in until the channel closes or ctx
// is cancelled, and emits one []Result group per dispatch cycle on the
// returned channel; within a group results keep their batch's item order.
// The returned channel is unbuffered, so the pipeline only drains upstream
// while downstream keeps accepting. It closes after the last accepted
// message resolves, or immediately on cancellation.
func (f *Flow[T, P]) Run(ctx context.Context, in <-chan Message[T, P]) <-chan []Result[T, P] {
	out := make(chan []Result[T, P])
	go func() {
		defer close(out)
		for {
			batch, open := f.gather(ctx, in)
			if len(batch) > 0 {
				if !f.processBatch(ctx, batch, out) {
					return
				}
			}
			if !open {
				return
			}
		}
	}()
	return out
}

// Drain runs the pipeline and consumes its results, logging failed items.
// It returns nil once the input closes and every message has resolved, or
// ctx.Err() after cancellation.
func (f *Flow[T, P]) Drain(ctx context.Context, in <-chan Message[T, P]) error {
	for group := range f.Run(ctx, in) {
		for _, r := range group {
			if r.Err != nil {
				f.log.Warn("write failed",
					zap.String("id", r.Message.ID),
					zap.Int("attempts", r.Attempts),
					zap.Error(r.Err))
			}
		}
	}
	return ctx.Err()
}

// gather blocks until a full batch is buffered or the input closes. The
// second return is false once no further batches can form.
func (f *Flow[T, P]) gather(ctx context.Context, in <-chan Message[T, P]) ([]Message[T, P], bool) {
	buf := make([]Message[T, P], 0, f.cfg.BatchSize)
	for len(buf) < f.cfg.BatchSize {
		select {
		case <-ctx.Done():
			return nil, false
		case m, ok := <-in:
			if !ok {
				return buf, false
			}
			buf = append(buf, m)
		}
	}
	return buf, true
}

// batchItem tracks one message through dispatch and retries.
type batchItem[T, P any] struct {
	msg      Message[T, P]
	op       store.Op
	attempts int
	err      error
	done     bool
	emitted  bool
}

// processBatch drives one batch until every item is terminal, emitting
// each cycle's resolved items as one group. It returns false when ctx
// cancels the cycle midway.
func (f *Flow[T, P]) processBatch(ctx context.Context, msgs []Message[T, P], out chan<- []Result[T, P]) bool {
	f.met.BatchStarted()
	defer f.met.BatchResolved()

	items := make([]*batchItem[T, P], len(msgs))
	for i, m := range msgs {
		it := &batchItem[T, P]{msg: m}
		op, err := f.buildOp(m)
		if err != nil {
			it.done, it.err = true, err
		} else {
			it.op = op
		}
		items[i] = it
	}

	for cycle := 0; ; cycle++ {
		var pending []*batchItem[T, P]
		for _, it := range items {
			if !it.done {
				pending = append(pending, it)
			}
		}

		if len(pending) > 0 {
			if cycle > 0 {
				f.met.Retry()
				if !f.await(ctx, f.cfg.RetryInterval) {
					return false
				}
			}
			if !f.dispatch(ctx, pending) {
				return false
			}
		}

		if !f.emit(ctx, items, out) {
			return false
		}

		remaining := 0
		for _, it := range items {
			if !it.done {
				remaining++
			}
		}
		if remaining == 0 {
			return true
		}
		f.log.Debug("batch remnant scheduled for retry",
			zap.Int("remaining", remaining),
			zap.Duration("interval", f.cfg.RetryInterval))
	}
}

// dispatch performs one bulk request for the pending items and resolves
// their outcomes in place. It returns false on cancellation.
func (f *Flow[T, P]) dispatch(ctx context.Context, pending []*batchItem[T, P]) bool {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return false
		}
	}

	ops := make([]store.Op, len(pending))
	for i, it := range pending {
		ops[i] = it.op
	}

	start := time.Now()
	results, err := f.writer.WriteBulk(ctx, ops)
	f.met.ObserveBulk(time.Since(start))

	for _, it := range pending {
		it.attempts++
	}

	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		// The request never produced per-item outcomes; every pending
		// item failed transport-side and stays retryable.
		werr := fmt.Errorf("bulk write: %w", err)
		for _, it := range pending {
			f.failTransient(it, werr, true)
		}
		return true
	}

	if len(results) != len(ops) {
		werr := fmt.Errorf("bulk write: %d results for %d ops", len(results), len(ops))
		for _, it := range pending {
			it.done, it.err = true, werr
		}
		return true
	}

	for i, it := range pending {
		rerr := results[i].Err
		switch {
		case rerr == nil:
			it.done = true
		case errors.Is(rerr, store.ErrVersionConflict):
			it.done, it.err = true, rerr
		case f.classify(rerr) == store.ClassTransient:
			f.failTransient(it, rerr, false)
		default:
			it.done, it.err = true, rerr
		}
	}
	return true
}

// failTransient applies the retry policy to a transiently failed item.
// Transport failures bypass the RetryPartialFailure gate; both respect the
// per-item budget.
func (f *Flow[T, P]) failTransient(it *batchItem[T, P], err error, transport bool) {
	if !transport && !f.cfg.RetryPartialFailure {
		it.done, it.err = true, err
		return
	}
	if it.attempts > f.cfg.MaxRetries {
		it.done = true
		it.err = fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, it.attempts, err)
		if f.cfg.MaxRetries > 0 {
			f.log.Warn("retry budget exhausted",
				zap.String("id", it.msg.ID),
				zap.Int("attempts", it.attempts),
				zap.Error(err))
		}
	}
}

// emit pushes the cycle's newly resolved items, in batch order, as one
// group. It returns false when downstream is gone (ctx cancelled).
func (f *Flow[T, P]) emit(ctx context.Context, items []*batchItem[T, P], out chan<- []Result[T, P]) bool {
	var group []Result[T, P]
	for _, it := range items {
		if it.done && !it.emitted {
			it.emitted = true
			f.met.Resolve(it.err == nil)
			group = append(group, Result[T, P]{
				Message:  it.msg,
				Err:      it.err,
				Attempts: it.attempts,
			})
		}
	}
	if len(group) == 0 {
		return true
	}
	select {
	case out <- group:
		return true
	case <-ctx.Done():
		return false
	}
}

// await sleeps for the retry interval, abandoning the wait on cancellation.
func (f *Flow[T, P]) await(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// buildOp validates a message and serializes its payload once, before the
// first dispatch. A failure here resolves the item without dispatching it
// and never aborts its siblings.
func (f *Flow[T, P]) buildOp(m Message[T, P]) (store.Op, error) {
	if m.ID == "" {
		return store.Op{}, fmt.Errorf("%w: empty id", ErrInvalidMessage)
	}
	if m.Version < 0 {
		return store.Op{}, fmt.Errorf("%w: negative version %d for %s", ErrInvalidMessage, m.Version, m.ID)
	}
	op := store.Op{ID: m.ID, Version: m.Version}
	if m.Doc != nil {
		body, err := f.marshal(m.Doc)
		if err != nil {
			return store.Op{}, fmt.Errorf("marshal %s: %w", m.ID, err)
		}
		op.Doc = body
	}
	return op, nil
}
