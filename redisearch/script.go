package redisearch

import (
	"context"
	"strconv"

	"github.com/redis/rueidis"
)

// writeScript applies one op atomically: it reads the document's current
// version from the __ver field, rejects the op when an expected version is
// given and does not match, then writes or deletes the document. A write
// replaces the whole document and stamps __ver with current+1.
//
// KEYS[1] document key
// ARGV[1] expected version, "0" for unversioned
// ARGV[2] JSON body, "" for delete
const writeScript = `local cur = 0
local raw = redis.call('JSON.GET', KEYS[1], '$.__ver')
if raw then
  local arr = cjson.decode(raw)
  if arr[1] ~= nil then cur = tonumber(arr[1]) end
end
local expected = tonumber(ARGV[1])
if expected > 0 and expected ~= cur then
  return redis.error_reply('version conflict: current ' .. cur)
end
if ARGV[2] == '' then
  redis.call('DEL', KEYS[1])
  return 0
end
redis.call('JSON.SET', KEYS[1], '$', ARGV[2])
redis.call('JSON.SET', KEYS[1], '$.__ver', tostring(cur + 1))
return cur + 1`

// scriptSHA returns the cached SHA of writeScript, loading it on first use.
func (s *Store) scriptSHA(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sha != "" {
		return s.sha, nil
	}
	return s.loadScriptLocked(ctx)
}

// reloadScript drops the cached SHA and loads the script again. Used when
// the server reports NOSCRIPT after a restart or SCRIPT FLUSH.
func (s *Store) reloadScript(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sha = ""
	return s.loadScriptLocked(ctx)
}

func (s *Store) loadScriptLocked(ctx context.Context) (string, error) {
	cmd := s.b().Arbitrary("SCRIPT", "LOAD").Args(writeScript).Build()
	sha, err := s.do(ctx, cmd).ToString()
	if err != nil {
		return "", &Error{Op: OpScriptLoad, Err: err}
	}
	s.sha = sha
	return sha, nil
}

// buildWriteCmd assembles the EVALSHA invocation for one op.
func (s *Store) buildWriteCmd(sha, id string, version int64, body []byte) rueidis.Completed {
	return s.b().
		Arbitrary("EVALSHA").
		Args(sha, "1").
		Keys(s.docKey(id)).
		Args(strconv.FormatInt(version, 10), string(body)).
		Build()
}

// parseConflictVersion extracts the current version from a script conflict
// reply of the form "version conflict: current N".
func parseConflictVersion(msg string) int64 {
	for i := len(msg) - 1; i >= 0; i-- {
		if msg[i] == ' ' {
			if v, err := strconv.ParseInt(msg[i+1:], 10, 64); err == nil {
				return v
			}
			return 0
		}
	}
	return 0
}
