package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultOperationTimeout bounds each Redis round trip when none is configured.
const DefaultOperationTimeout = 200 * time.Millisecond

// Redis is a Cache backed by a go-redis client. Each call runs under its own
// timeout derived from the caller's context.
type Redis struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewRedis wraps client. A non-positive timeout selects DefaultOperationTimeout.
func NewRedis(client redis.UniversalClient, timeout time.Duration) *Redis {
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	return &Redis{client: client, timeout: timeout}
}

// Client exposes the underlying client for components that need counters.
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", mapRedisErr(err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return mapRedisErr(err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return mapRedisErr(err)
	}
	return nil
}

// Take uses GETDEL so concurrent consumers of the same key cannot both win.
func (r *Redis) Take(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	v, err := r.client.GetDel(ctx, key).Result()
	if err != nil {
		return "", mapRedisErr(err)
	}
	return v, nil
}

func (r *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, mapRedisErr(err)
	}
	return ok, nil
}

func mapRedisErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
