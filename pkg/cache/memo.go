package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// Memo caches values that are expensive to load, such as remote catalogs.
// Concurrent misses on one key share a single load; failed loads are not
// cached.
type Memo[V any] struct {
	items *ttlcache.Cache[string, V]
	group singleflight.Group
}

func NewMemo[V any](ttl time.Duration) *Memo[V] {
	return &Memo[V]{items: NewTTLCache[V](ttl, 0)}
}

// Get returns the cached value of key, calling load on a miss.
func (m *Memo[V]) Get(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if item := m.items.Get(key); item != nil {
		return item.Value(), nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		if item := m.items.Get(key); item != nil {
			return item.Value(), nil
		}
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		m.items.Set(key, value, ttlcache.DefaultTTL)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Forget drops key so the next Get reloads it.
func (m *Memo[V]) Forget(key string) {
	m.items.Delete(key)
}
