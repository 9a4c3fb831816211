package flowdex

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/flowdex/store"
)

type fakeScroller struct {
	cursors []string
	limits  []int
	fn      func(cursor string) (*store.Page, error)
}

func (s *fakeScroller) Scroll(_ context.Context, cursor string, limit int) (*store.Page, error) {
	s.cursors = append(s.cursors, cursor)
	s.limits = append(s.limits, limit)
	return s.fn(cursor)
}

func twoPages() *fakeScroller {
	return &fakeScroller{
		fn: func(cursor string) (*store.Page, error) {
			switch cursor {
			case "":
				return &store.Page{
					Hits: []store.Hit{
						{ID: "a", Doc: []byte(`{"v":"1"}`), Version: 3},
						{ID: "b", Doc: []byte(`{"v":"2"}`), Version: 1},
					},
					Cursor: "2",
					Total:  3,
				}, nil
			case "2":
				return &store.Page{
					Hits:  []store.Hit{{ID: "c", Doc: []byte(`{"v":"3"}`), Version: 7}},
					Total: 3,
				}, nil
			default:
				return nil, errors.New("unexpected cursor " + cursor)
			}
		},
	}
}

func TestNewSource_Validation(t *testing.T) {
	if _, err := NewSource[payload](nil, DefaultSourceConfig()); err == nil {
		t.Error("expected error for nil scroller")
	}

	bad := DefaultSourceConfig()
	bad.PageSize = 0
	if _, err := NewSource[payload](&fakeScroller{}, bad); err == nil {
		t.Error("expected error for zero page size")
	}
}

func TestSource_EachPaginates(t *testing.T) {
	sc := twoPages()
	cfg := DefaultSourceConfig()
	cfg.PageSize = 2

	src, err := NewSource[payload](sc, cfg)
	if err != nil {
		t.Fatal(err)
	}

	var hits []Hit[payload]
	if err := src.Each(context.Background(), func(h Hit[payload]) bool {
		hits = append(hits, h)
		return true
	}); err != nil {
		t.Fatal(err)
	}

	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	for i, want := range []string{"a", "b", "c"} {
		if hits[i].ID != want {
			t.Errorf("hit %d: expected %s, got %s", i, want, hits[i].ID)
		}
	}
	if hits[0].Doc.V != "1" || hits[2].Doc.V != "3" {
		t.Errorf("unexpected decoded documents: %+v", hits)
	}

	if len(sc.cursors) != 2 || sc.cursors[0] != "" || sc.cursors[1] != "2" {
		t.Errorf("unexpected cursor sequence %v", sc.cursors)
	}
	for i, l := range sc.limits {
		if l != 2 {
			t.Errorf("scroll %d: expected limit 2, got %d", i, l)
		}
	}
}

func TestSource_VersionGate(t *testing.T) {
	run := func(include bool) []Hit[payload] {
		cfg := DefaultSourceConfig()
		cfg.IncludeVersion = include
		src, _ := NewSource[payload](twoPages(), cfg)
		var hits []Hit[payload]
		_ = src.Each(context.Background(), func(h Hit[payload]) bool {
			hits = append(hits, h)
			return true
		})
		return hits
	}

	withOut := run(false)
	if withOut[0].Version != 0 {
		t.Errorf("versions must stay hidden by default, got %d", withOut[0].Version)
	}

	with := run(true)
	if with[0].Version != 3 || with[2].Version != 7 {
		t.Errorf("expected stored versions surfaced, got %+v", with)
	}
}

func TestSource_EachStopsWhenFnFalse(t *testing.T) {
	sc := twoPages()
	src, _ := NewSource[payload](sc, DefaultSourceConfig())

	seen := 0
	if err := src.Each(context.Background(), func(Hit[payload]) bool {
		seen++
		return false
	}); err != nil {
		t.Fatalf("stopping early is not an error, got %v", err)
	}
	if seen != 1 {
		t.Errorf("expected iteration to stop after 1 hit, got %d", seen)
	}
	if len(sc.cursors) != 1 {
		t.Errorf("expected no further pages fetched, got %v", sc.cursors)
	}
}

func TestSource_EachScrollError(t *testing.T) {
	scrollErr := errors.New("search unavailable")
	sc := &fakeScroller{fn: func(string) (*store.Page, error) { return nil, scrollErr }}
	src, _ := NewSource[payload](sc, DefaultSourceConfig())

	err := src.Each(context.Background(), func(Hit[payload]) bool { return true })
	if !errors.Is(err, scrollErr) {
		t.Fatalf("expected wrapped scroll error, got %v", err)
	}
}

func TestSource_EachDecodeError(t *testing.T) {
	sc := &fakeScroller{fn: func(string) (*store.Page, error) {
		return &store.Page{Hits: []store.Hit{{ID: "broken", Doc: []byte(`{`)}}}, nil
	}}
	src, _ := NewSource[payload](sc, DefaultSourceConfig())

	err := src.Each(context.Background(), func(Hit[payload]) bool { return true })
	if err == nil || !strings.Contains(err.Error(), "decode broken") {
		t.Fatalf("expected decode error naming the document, got %v", err)
	}
}

func TestSource_EachCancelled(t *testing.T) {
	sc := twoPages()
	src, _ := NewSource[payload](sc, DefaultSourceConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := src.Each(ctx, func(Hit[payload]) bool { return true }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(sc.cursors) != 0 {
		t.Errorf("expected no scroll after cancellation, got %v", sc.cursors)
	}
}

func TestSource_WithUnmarshaler(t *testing.T) {
	sc := &fakeScroller{fn: func(string) (*store.Page, error) {
		return &store.Page{Hits: []store.Hit{{ID: "a", Doc: []byte("raw")}}}, nil
	}}
	src, _ := NewSource[payload](sc, DefaultSourceConfig())
	src.WithUnmarshaler(func(b []byte, v *payload) error {
		v.V = string(b)
		return nil
	})

	var got payload
	_ = src.Each(context.Background(), func(h Hit[payload]) bool {
		got = h.Doc
		return true
	})
	if got.V != "raw" {
		t.Errorf("expected custom decoder applied, got %+v", got)
	}
}

func TestSource_Stream(t *testing.T) {
	src, _ := NewSource[payload](twoPages(), DefaultSourceConfig())

	ch, wait := src.Stream(context.Background())
	var ids []string
	for h := range ch {
		ids = append(ids, h.ID)
	}
	if err := wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Errorf("unexpected stream order %v", ids)
	}
}

func TestSource_StreamError(t *testing.T) {
	scrollErr := errors.New("search unavailable")
	sc := &fakeScroller{fn: func(string) (*store.Page, error) { return nil, scrollErr }}
	src, _ := NewSource[payload](sc, DefaultSourceConfig())

	ch, wait := src.Stream(context.Background())
	for range ch {
	}
	if err := wait(); !errors.Is(err, scrollErr) {
		t.Fatalf("expected scroll error from wait, got %v", err)
	}
}
