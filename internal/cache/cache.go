// Package cache provides the distributed file-owner cache in front of the
// backend directory.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates that the key was not found in the cache.
var ErrCacheMiss = errors.New("cache miss")

// ErrCacheDisabled indicates that caching is disabled.
var ErrCacheDisabled = errors.New("cache disabled")

// Cache stores short-lived lookup results. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get retrieves a value. Returns ErrCacheMiss when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying connection.
	Close() error
}

// FileOwnerKey builds the cache key for a file's owning backend.
func FileOwnerKey(fileID string) string {
	return "file-owner:" + fileID
}

// Disabled returns a cache that rejects every operation, used when no Redis
// URL is configured. Callers treat ErrCacheDisabled like a miss.
func Disabled() Cache {
	return disabledCache{}
}

type disabledCache struct{}

func (disabledCache) Get(context.Context, string) (string, error) {
	return "", ErrCacheDisabled
}

func (disabledCache) Set(context.Context, string, string, time.Duration) error {
	return ErrCacheDisabled
}

func (disabledCache) Delete(context.Context, string) error {
	return ErrCacheDisabled
}

func (disabledCache) Close() error {
	return nil
}
