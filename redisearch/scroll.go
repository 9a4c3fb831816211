package redisearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/flowdex/store"
)

// Scroll pages through the collection via FT.SEARCH. The cursor is the
// numeric offset of the next page; pass "" to start.
func (s *Store) Scroll(ctx context.Context, cursor string, limit int) (*store.Page, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		offset = n
	}

	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(s.indexName(), "*", "LIMIT", strconv.Itoa(offset), strconv.Itoa(limit)).
		Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &Error{Op: OpSearch, Err: err}
	}

	return s.parseScrollPage(raw, offset)
}

func (s *Store) parseScrollPage(raw []rueidis.RedisMessage, offset int) (*store.Page, error) {
	if len(raw) == 0 {
		return &store.Page{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	returned := (len(raw) - 1) / 2
	hits := make([]store.Hit, 0, returned)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		doc, ok := parseFieldPairs(fields)["$"]
		if !ok {
			continue
		}
		hits = append(hits, store.Hit{
			ID:      strings.TrimPrefix(key, s.docPrefix()),
			Doc:     []byte(doc),
			Version: docVersion([]byte(doc)),
		})
	}

	// Advance by what the server returned, not by what parsed, so a
	// skipped entry cannot stall the scroll.
	page := &store.Page{Hits: hits, Total: total}
	if next := offset + returned; returned > 0 && int64(next) < total {
		page.Cursor = strconv.Itoa(next)
	}
	return page, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// docVersion reads the __ver stamp maintained by the write script.
func docVersion(doc []byte) int64 {
	var probe struct {
		Ver int64 `json:"__ver"`
	}
	if err := json.Unmarshal(doc, &probe); err != nil {
		return 0
	}
	return probe.Ver
}
