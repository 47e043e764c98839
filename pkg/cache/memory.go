package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore keeps entries in process memory. A bounded store evicts the
// least recently used entry when full; reads never extend an entry's TTL.
type MemoryStore struct {
	items *ttlcache.Cache[string, string]
}

// NewMemoryStore creates a store holding at most maxSize entries.
// maxSize <= 0 means unbounded.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{items: NewTTLCache[string](time.Hour, maxSize)}
}

// NewTTLCache builds a string keyed ttlcache with the options every cache
// in this module shares: a default TTL, an optional capacity and no TTL
// extension on reads.
func NewTTLCache[V any](ttl time.Duration, maxSize int) *ttlcache.Cache[string, V] {
	opts := []ttlcache.Option[string, V]{
		ttlcache.WithTTL[string, V](ttl),
		ttlcache.WithDisableTouchOnHit[string, V](),
	}
	if maxSize > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, V](uint64(maxSize)))
	}
	return ttlcache.New[string, V](opts...)
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	item := s.items.Get(key)
	if item == nil {
		return "", false, nil
	}
	return item.Value(), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.items.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

// Len counts stored entries, including expired ones not yet removed.
func (s *MemoryStore) Len() int {
	return s.items.Len()
}
