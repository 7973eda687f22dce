// Package cache provides the get-or-compute cache used for lookup text and
// parsed lookup variables. Backends store opaque bytes with a per-entry TTL;
// GetOrCompute handles encoding so every backend sees whole values only.
package cache

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// DefaultTTL is how long lookup data stays cached unless configured otherwise.
const DefaultTTL = 6 * time.Hour

// Cache is a byte-oriented key/value store with expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A missing or expired key is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key for ttl.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key if present.
	Delete(ctx context.Context, key string) error
}

// GetOrCompute returns the cached value for key, or calls compute and caches
// its result for ttl. The bool reports a cache hit.
//
// The cache is an optimization: backend failures and undecodable entries are
// treated as misses, and a failed write still returns the computed value.
// Concurrent callers may compute the same key twice; the last write wins.
// Compute errors are returned as-is and nothing is cached.
func GetOrCompute[T any](ctx context.Context, c Cache, key string, ttl time.Duration, compute func() (T, error)) (T, bool, error) {
	if c != nil {
		if b, ok, err := c.Get(ctx, key); err == nil && ok {
			var v T
			if err := msgpack.Unmarshal(b, &v); err == nil {
				return v, true, nil
			}
		}
	}

	v, err := compute()
	if err != nil {
		return v, false, err
	}

	if c != nil {
		if b, err := msgpack.Marshal(v); err == nil {
			_ = c.Put(ctx, key, b, ttl) //nolint:errcheck // best-effort write
		}
	}
	return v, false, nil
}
