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

// DefaultMemberTTL is the read-through profile lifetime.
const DefaultMemberTTL = time.Hour

// MemberCache is the read-through cache of principal profiles. Secrets are
// stripped before writing.
type MemberCache struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewMemberCache(c cache.Cache, ttl time.Duration) *MemberCache {
	if ttl <= 0 {
		ttl = DefaultMemberTTL
	}
	return &MemberCache{cache: c, ttl: ttl}
}

func memberKey(uuid string) string {
	return "member:" + uuid
}

// Get returns the cached profile, or nil on a miss or an undecodable entry.
func (s *MemberCache) Get(ctx context.Context, uuid string) (*domain.Principal, error) {
	raw, err := s.cache.Get(ctx, memberKey(uuid))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	var p domain.Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, nil
	}
	return &p, nil
}

func (s *MemberCache) Put(ctx context.Context, p *domain.Principal) error {
	raw, err := json.Marshal(p.Public())
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, memberKey(p.UUID), string(raw), s.ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (s *MemberCache) Invalidate(ctx context.Context, uuid string) error {
	if err := s.cache.Delete(ctx, memberKey(uuid)); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
