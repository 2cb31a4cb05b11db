package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedis(client, time.Second)
}

func TestRedisSetGetDelete(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("get: %q %v", got, err)
	}
	if ttl := mr.TTL("k"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}

	if err := c.Delete(ctx, "k", "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestRedisEntriesExpire(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 2*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(3 * time.Second)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestRedisRejectsNonPositiveTTL(t *testing.T) {
	_, c := newTestRedis(t)
	if err := c.Set(context.Background(), "k", "v", 0); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}

func TestRedisTakeIsSingleUse(t *testing.T) {
	_, c := newTestRedis(t)
	ctx := context.Background()

	_ = c.Set(ctx, "once", "v", time.Minute)
	if v, err := Take(ctx, c, "once"); err != nil || v != "v" {
		t.Fatalf("first take: %q %v", v, err)
	}
	if _, err := Take(ctx, c, "once"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected second take to miss, got %v", err)
	}
}

func TestRedisSetNX(t *testing.T) {
	_, c := newTestRedis(t)
	ctx := context.Background()

	ok, err := SetNX(ctx, c, "nx", "1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first setnx: %v %v", ok, err)
	}
	ok, err = SetNX(ctx, c, "nx", "2", time.Minute)
	if err != nil || ok {
		t.Fatalf("second setnx should not write: %v %v", ok, err)
	}
}

func TestRedisUnavailableIsWrapped(t *testing.T) {
	mr, c := newTestRedis(t)
	mr.Close()

	if _, err := c.Get(context.Background(), "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestLocalExpiryAndTake(t *testing.T) {
	now := time.Now()
	l := NewLocal().WithClock(func() time.Time { return now })
	ctx := context.Background()

	if err := l.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, err := l.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("get: %q %v", v, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := l.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected expiry miss, got %v", err)
	}

	_ = l.Set(ctx, "t", "x", time.Minute)
	if v, err := Take(ctx, l, "t"); err != nil || v != "x" {
		t.Fatalf("take: %q %v", v, err)
	}
	if _, err := l.Take(ctx, "t"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected second take miss, got %v", err)
	}
}

func TestLocalNeverEvictsBeforeExpiry(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	if _, err := SetNX(ctx, l, "revoked-token", "blacklist", time.Hour); err != nil {
		t.Fatalf("setnx: %v", err)
	}
	for i := 0; i < 3*sweepEvery; i++ {
		_ = l.Set(ctx, "jwt_verify:tok-"+strconv.Itoa(i)+":svc1", "{}", time.Minute)
	}

	if v, err := l.Get(ctx, "revoked-token"); err != nil || v != "blacklist" {
		t.Fatalf("expected entry to survive unrelated writes, got %q %v", v, err)
	}
}

func TestLocalSweepsExpiredEntries(t *testing.T) {
	now := time.Now()
	l := NewLocal().WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < sweepEvery-1; i++ {
		_ = l.Set(ctx, "short-"+strconv.Itoa(i), "v", time.Second)
	}
	now = now.Add(2 * time.Second)
	_ = l.Set(ctx, "long", "v", time.Hour)

	if n := l.Len(); n != 1 {
		t.Fatalf("expected sweep to leave 1 entry, got %d", n)
	}
}

func TestLRUEvictsBeyondSize(t *testing.T) {
	l, err := NewLRU(2)
	if err != nil {
		t.Fatalf("new lru: %v", err)
	}
	ctx := context.Background()

	_ = l.Set(ctx, "a", "1", time.Minute)
	_ = l.Set(ctx, "b", "2", time.Minute)
	_ = l.Set(ctx, "c", "3", time.Minute)

	if _, err := l.Get(ctx, "a"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected oldest entry evicted, got %v", err)
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Now()
	l, err := NewLRU(4)
	if err != nil {
		t.Fatalf("new lru: %v", err)
	}
	l.WithClock(func() time.Time { return now })
	ctx := context.Background()

	_ = l.Set(ctx, "k", "v", time.Minute)
	now = now.Add(time.Minute)
	if _, err := l.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected expiry miss, got %v", err)
	}
}
