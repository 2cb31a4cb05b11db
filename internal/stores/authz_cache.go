package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tenantauth/cache"
	"github.com/MrEthical07/tenantauth/internal/domain"
)

// AuthorizationCache memoizes resolved contexts per (token, service id).
type AuthorizationCache struct {
	cache cache.Cache
	now   func() time.Time
}

func NewAuthorizationCache(c cache.Cache, now func() time.Time) *AuthorizationCache {
	if now == nil {
		now = time.Now
	}
	return &AuthorizationCache{cache: c, now: now}
}

func authzKey(token, serviceID string) string {
	return "jwt_verify:" + token + ":" + serviceID
}

// Get returns the cached context, or nil on a miss. Entries whose recorded
// expiry has passed are treated as misses.
func (s *AuthorizationCache) Get(ctx context.Context, token, serviceID string) (*domain.AuthorizationContext, error) {
	raw, err := s.cache.Get(ctx, authzKey(token, serviceID))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	var ac domain.AuthorizationContext
	if err := json.Unmarshal([]byte(raw), &ac); err != nil {
		return nil, nil
	}
	if !ac.ExpiresAt.After(s.now()) {
		return nil, nil
	}
	return &ac, nil
}

// Put stores ac with TTL equal to its remaining lifetime. Expired contexts
// are not written.
func (s *AuthorizationCache) Put(ctx context.Context, token string, ac *domain.AuthorizationContext) error {
	ttl := ac.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(ac)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, authzKey(token, ac.ServiceID), string(raw), ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
