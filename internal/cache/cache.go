// Package cache provides the key/value stores backing the catalog read path.
//
// Values are opaque bytes with a per-entry TTL. Patterns passed to
// DeleteByPattern use Redis glob syntax: * matches any run of characters, ?
// matches exactly one, [...] matches a class and \ escapes the next character.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is the contract shared by the Redis and in-process backends.
type Cache interface {
	// Get returns the value stored under key. A missing or expired key
	// reports ok=false with a nil error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key. A ttl of zero or less never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteByPattern removes every key matching the glob pattern and returns
	// once all matching keys are gone.
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Backend names accepted by Open.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Closer is a Cache that holds connections or background goroutines.
type Closer interface {
	Cache
	Close() error
}

// Open builds the named backend. The redis backend is pinged before it is returned.
func Open(ctx context.Context, backend string, redis RedisOptions) (Closer, error) {
	switch backend {
	case BackendRedis:
		return NewRedis(ctx, redis)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", backend)
	}
}
