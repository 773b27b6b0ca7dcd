package cache

import (
	"context"
	"time"
)

// Cache defines the interface for caching derived read models such as the
// dashboard counters. Implementations: MemoryCache (single instance) and
// RedisCache (shared between instances).
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// GetOrSet retrieves a value or computes and stores it if missing.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error)
}

// Locker serializes work on a single key, such as one pantry item, so that
// "read alert state, then write" runs as one logical transaction per item.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned function releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// CacheError is a sentinel error type for the cache package.
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"

	// ErrLockTimeout indicates a lock could not be acquired before the context ended.
	ErrLockTimeout CacheError = "lock not acquired"
)
