package redisearch

import "context"

// EnsureIndex creates the collection's FT index over its JSON documents so
// scroll reads can enumerate them. An existing index is left untouched.
// The schema only indexes the __ver stamp; payload fields stay unindexed.
func (s *Store) EnsureIndex(ctx context.Context) error {
	cmd := s.b().Arbitrary("FT.CREATE").
		Args(s.indexName(),
			"ON", "JSON",
			"PREFIX", "1", s.docPrefix(),
			"SCHEMA", "$.__ver", "AS", "__ver", "NUMERIC").
		Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return &Error{Op: OpCreateIndex, Err: err}
	}
	return nil
}
