// Package cache defines the shared key-value cache contract used for
// revocation, single-use flow markers, and read-through caches, together with
// a Redis implementation and an in-process LRU implementation.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss is returned by Get and Take when the key is absent or expired.
	ErrMiss = errors.New("cache: miss")
	// ErrUnavailable wraps backend failures, including per-call timeouts.
	ErrUnavailable = errors.New("cache: backend unavailable")
	// ErrInvalidTTL is returned by Set for non-positive TTLs.
	ErrInvalidTTL = errors.New("cache: ttl must be positive")
)

// Cache is a TTL-aware string key-value store. Every entry must carry a
// positive TTL; implementations reject ttl <= 0 so that no key outlives the
// credential that produced it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Taker is implemented by caches that can atomically read and delete a key.
// Single-use consumption uses it when available.
type Taker interface {
	Take(ctx context.Context, key string) (string, error)
}

// Adder is implemented by caches that can write a key only when it is absent.
type Adder interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// Take reads and deletes key, atomically when c implements Taker. Otherwise it
// falls back to Get followed by Delete, which leaves a narrow window in which
// two callers can both observe the value.
func Take(ctx context.Context, c Cache, key string) (string, error) {
	if t, ok := c.(Taker); ok {
		return t.Take(ctx, key)
	}
	v, err := c.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if err := c.Delete(ctx, key); err != nil {
		return "", err
	}
	return v, nil
}

// SetNX writes key only when absent. Without Adder support it degrades to a
// Get then Set.
func SetNX(ctx context.Context, c Cache, key, value string, ttl time.Duration) (bool, error) {
	if a, ok := c.(Adder); ok {
		return a.SetNX(ctx, key, value, ttl)
	}
	if _, err := c.Get(ctx, key); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrMiss) {
		return false, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}
