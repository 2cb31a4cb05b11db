package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a size-bounded in-process Cache with per-entry expiry. It may evict
// an entry before its TTL, so it only backs read-through caches whose misses
// fall back to the source of truth. Never use it for revocation or
// single-use keys; use Local or Redis for those.
type LRU struct {
	mu    sync.Mutex
	items *lru.Cache[string, localEntry]
	now   func() time.Time
}

// NewLRU creates a cache holding at most size entries.
func NewLRU(size int) (*LRU, error) {
	items, err := lru.New[string, localEntry](size)
	if err != nil {
		return nil, err
	}
	return &LRU{items: items, now: time.Now}, nil
}

// WithClock replaces the expiry clock. It returns the receiver.
func (c *LRU) WithClock(now func() time.Time) *LRU {
	c.now = now
	return c
}

func (c *LRU) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items.Get(key)
	if !ok {
		return "", ErrMiss
	}
	if !c.now().Before(e.expiresAt) {
		c.items.Remove(key)
		return "", ErrMiss
	}
	return e.value, nil
}

func (c *LRU) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Add(key, localEntry{value: value, expiresAt: c.now().Add(ttl)})
	return nil
}

func (c *LRU) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.items.Remove(k)
	}
	return nil
}
