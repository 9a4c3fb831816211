package redisearch

import "github.com/redis/rueidis"

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client, collection string) *Store {
	return &Store{client: c, collection: collection}
}
