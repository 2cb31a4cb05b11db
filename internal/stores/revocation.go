package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tenantauth/cache"
)

const revokedMarker = "blacklist"

// ErrCacheUnavailable wraps any cache failure surfaced by these stores.
var ErrCacheUnavailable = errors.New("stores: cache unavailable")

// RevocationStore is the blacklist of revoked Access and Refresh tokens,
// keyed by the raw token string.
type RevocationStore struct {
	cache cache.Cache
	now   func() time.Time
}

func NewRevocationStore(c cache.Cache, now func() time.Time) *RevocationStore {
	if now == nil {
		now = time.Now
	}
	return &RevocationStore{cache: c, now: now}
}

// Revoke blacklists token until exp. It reports false without writing when
// the token has already expired or is already revoked.
func (s *RevocationStore) Revoke(ctx context.Context, token string, exp time.Time) (bool, error) {
	ttl := exp.Sub(s.now())
	if ttl <= 0 {
		return false, nil
	}

	written, err := cache.SetNX(ctx, s.cache, token, revokedMarker, ttl)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return written, nil
}

// IsRevoked reports whether token is on the blacklist.
func (s *RevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	if _, err := s.cache.Get(ctx, token); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return true, nil
}
