package cache

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is the number of writes between full expiry sweeps.
const sweepEvery = 1024

type localEntry struct {
	value     string
	expiresAt time.Time
}

// Local is an in-process Cache that keeps every entry until its TTL passes.
// It never evicts early, so it can hold revocation and single-use keys.
// Expired entries are dropped on access and by a sweep every sweepEvery
// writes. Entries are not visible to other processes.
type Local struct {
	mu     sync.Mutex
	items  map[string]localEntry
	writes int
	now    func() time.Time
}

func NewLocal() *Local {
	return &Local{items: make(map[string]localEntry), now: time.Now}
}

// WithClock replaces the expiry clock. It returns the receiver.
func (l *Local) WithClock(now func() time.Time) *Local {
	l.now = now
	return l
}

// Len reports the number of stored entries, including expired ones not yet swept.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *Local) Get(_ context.Context, key string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getLocked(key)
}

func (l *Local) getLocked(key string) (string, error) {
	e, ok := l.items[key]
	if !ok {
		return "", ErrMiss
	}
	if !l.now().Before(e.expiresAt) {
		delete(l.items, key)
		return "", ErrMiss
	}
	return e.value, nil
}

func (l *Local) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.putLocked(key, value, ttl)
	return nil
}

func (l *Local) putLocked(key, value string, ttl time.Duration) {
	now := l.now()
	l.items[key] = localEntry{value: value, expiresAt: now.Add(ttl)}

	l.writes++
	if l.writes < sweepEvery {
		return
	}
	l.writes = 0
	for k, e := range l.items {
		if !now.Before(e.expiresAt) {
			delete(l.items, k)
		}
	}
}

func (l *Local) Delete(_ context.Context, keys ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		delete(l.items, k)
	}
	return nil
}

func (l *Local) Take(_ context.Context, key string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, err := l.getLocked(key)
	if err != nil {
		return "", err
	}
	delete(l.items, key)
	return v, nil
}

func (l *Local) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.getLocked(key); err == nil {
		return false, nil
	}
	l.putLocked(key, value, ttl)
	return true, nil
}
