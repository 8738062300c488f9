// Package cache stores rendered API responses for a short time so repeated
// listing and proposal requests skip the fetch/expand work.
package cache

import (
	"context"
	"strings"
	"time"
)

// Store is a byte-oriented TTL cache. A miss is (nil, false, nil); errors
// are reserved for backend failures.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Key joins parts into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}
