package flowdex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/flowdex/store"
)

// Hit is one document streamed out of a store by a Source.
type Hit[T any] struct {
	ID      string
	Doc     T
	Version int64
}

// Source streams a collection out of a store.Scroller page by page,
// fetching the next page only once the previous one is consumed.
type Source[T any] struct {
	scroller  store.Scroller
	cfg       SourceConfig
	unmarshal func([]byte, *T) error
	log       *zap.Logger
}

// NewSource validates cfg and returns a Source reading through sc.
func NewSource[T any](sc store.Scroller, cfg SourceConfig) (*Source[T], error) {
	if sc == nil {
		return nil, errors.New("flowdex: scroller required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("flowdex: %w", err)
	}
	return &Source[T]{
		scroller:  sc,
		cfg:       cfg,
		unmarshal: func(b []byte, v *T) error { return json.Unmarshal(b, v) },
		log:       zap.NewNop(),
	}, nil
}

// WithUnmarshaler replaces the payload decoder (JSON by default).
func (s *Source[T]) WithUnmarshaler(u func([]byte, *T) error) *Source[T] {
	if u != nil {
		s.unmarshal = u
	}
	return s
}

// WithLogger attaches a logger for scroll diagnostics.
func (s *Source[T]) WithLogger(l *zap.Logger) *Source[T] {
	if l != nil {
		s.log = l
	}
	return s
}

// Each streams every document to fn in scroll order. Iteration stops when
// fn returns false, the scroll is exhausted, or ctx is cancelled.
func (s *Source[T]) Each(ctx context.Context, fn func(Hit[T]) bool) error {
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.scroller.Scroll(ctx, cursor, s.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("scroll %q: %w", cursor, err)
		}
		s.log.Debug("page fetched",
			zap.Int("hits", len(page.Hits)),
			zap.Int64("total", page.Total))
		for _, h := range page.Hits {
			var doc T
			if err := s.unmarshal(h.Doc, &doc); err != nil {
				return fmt.Errorf("decode %s: %w", h.ID, err)
			}
			hit := Hit[T]{ID: h.ID, Doc: doc}
			if s.cfg.IncludeVersion {
				hit.Version = h.Version
			}
			if !fn(hit) {
				return nil
			}
		}
		if page.Cursor == "" {
			return nil
		}
		cursor = page.Cursor
	}
}

// Stream runs Each on its own goroutine and exposes the hits as a channel
// suitable for feeding a Flow. The returned wait function blocks until
// iteration finishes and reports its outcome; the channel closes first.
func (s *Source[T]) Stream(ctx context.Context) (<-chan Hit[T], func() error) {
	ch := make(chan Hit[T])
	errc := make(chan error, 1)
	go func() {
		err := s.Each(ctx, func(h Hit[T]) bool {
			select {
			case ch <- h:
				return true
			case <-ctx.Done():
				return false
			}
		})
		close(ch)
		errc <- err
	}()
	return ch, func() error { return <-errc }
}
