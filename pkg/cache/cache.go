// Package cache holds the TTL caches shared by the services: a bounded
// in-memory map and a Redis backed store behind the same Store interface.
package cache

import (
	"context"
	"time"
)

// Store is a string key/value cache with per-entry expiry.
type Store interface {
	// Get reports false when the key is missing or expired.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
