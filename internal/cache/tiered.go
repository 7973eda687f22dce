package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Tiered fronts a shared cache with a bounded in-process LRU. Entries stay in
// the LRU for at most its own ttl, so it should not exceed the shared ttl.
type Tiered struct {
	local *expirable.LRU[string, []byte]
	next  Cache
}

// NewTiered creates a tiered cache holding up to size entries locally.
func NewTiered(next Cache, size int, ttl time.Duration) *Tiered {
	return &Tiered{
		local: expirable.NewLRU[string, []byte](size, nil, ttl),
		next:  next,
	}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok := t.local.Get(key); ok {
		return b, true, nil
	}
	b, ok, err := t.next.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	t.local.Add(key, b)
	return b, true, nil
}

func (t *Tiered) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	t.local.Add(key, value)
	return t.next.Put(ctx, key, value, ttl)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	t.local.Remove(key)
	return t.next.Delete(ctx, key)
}
