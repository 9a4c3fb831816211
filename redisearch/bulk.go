package redisearch

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/flowdex/store"
)

// WriteBulk applies all ops in one DoMulti round-trip, one script call per
// op, and reports per-op outcomes. Raw failures are wrapped with the store
// sentinels so the default classifier can separate transient conditions
// from permanent ones.
func (s *Store) WriteBulk(ctx context.Context, ops []store.Op) ([]store.ItemResult, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	sha, err := s.scriptSHA(ctx)
	if err != nil {
		return nil, err
	}

	results := s.client.DoMulti(ctx, s.buildWriteCmds(sha, ops)...)

	// A dead connection fails the whole pipeline uniformly; report it as a
	// request-level failure instead of per-op outcomes.
	if err := results[0].Error(); err != nil && !isServerErr(err) {
		return nil, fmt.Errorf("do multi: %w", err)
	}

	out := make([]store.ItemResult, len(ops))
	var missing []int
	for i, res := range results {
		rerr := res.Error()
		if rerr == nil {
			continue
		}
		if isRedisErr(rerr, "noscript") {
			missing = append(missing, i)
			continue
		}
		out[i] = store.ItemResult{Err: s.wrapItemErr(ops[i].ID, rerr)}
	}

	// The script cache was flushed (server restart): reload once and replay
	// only the ops the server never executed.
	if len(missing) > 0 {
		if err := s.replayMissing(ctx, ops, missing, out); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (s *Store) buildWriteCmds(sha string, ops []store.Op) []rueidis.Completed {
	cmds := make([]rueidis.Completed, len(ops))
	for i, op := range ops {
		cmds[i] = s.buildWriteCmd(sha, op.ID, op.Version, op.Doc)
	}
	return cmds
}

func (s *Store) replayMissing(ctx context.Context, ops []store.Op, missing []int, out []store.ItemResult) error {
	sha, err := s.reloadScript(ctx)
	if err != nil {
		return err
	}

	cmds := make([]rueidis.Completed, len(missing))
	for i, idx := range missing {
		op := ops[idx]
		cmds[i] = s.buildWriteCmd(sha, op.ID, op.Version, op.Doc)
	}

	results := s.client.DoMulti(ctx, cmds...)
	if err := results[0].Error(); err != nil && !isServerErr(err) {
		return fmt.Errorf("do multi: %w", err)
	}
	for i, res := range results {
		if rerr := res.Error(); rerr != nil {
			out[missing[i]] = store.ItemResult{Err: s.wrapItemErr(ops[missing[i]].ID, rerr)}
		}
	}
	return nil
}

func isServerErr(err error) bool {
	_, ok := rueidis.IsRedisErr(err)
	return ok
}
