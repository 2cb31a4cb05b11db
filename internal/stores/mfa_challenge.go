package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tenantauth/cache"
)

var (
	ErrMFAChallengeNotFound = errors.New("mfa challenge not found")
	ErrMFAChallengeMismatch = errors.New("mfa challenge mismatch")
)

// MFAChallengeStore keeps the outstanding MFA-Challenge token per username.
// A new sign-in replaces any earlier challenge for the same user.
type MFAChallengeStore struct {
	cache cache.Cache
}

func NewMFAChallengeStore(c cache.Cache) *MFAChallengeStore {
	return &MFAChallengeStore{cache: c}
}

func mfaChallengeKey(username string) string {
	return "mfa_temp_token-" + username
}

func (s *MFAChallengeStore) Save(ctx context.Context, username, token string, ttl time.Duration) error {
	if err := s.cache.Set(ctx, mfaChallengeKey(username), token, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Verify checks that token is the outstanding challenge for username without
// consuming it.
func (s *MFAChallengeStore) Verify(ctx context.Context, username, token string) error {
	stored, err := s.cache.Get(ctx, mfaChallengeKey(username))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return ErrMFAChallengeNotFound
		}
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return ErrMFAChallengeMismatch
	}
	return nil
}

// Consume removes the challenge for username if it still equals token. Only
// one concurrent caller can succeed.
func (s *MFAChallengeStore) Consume(ctx context.Context, username, token string) error {
	key := mfaChallengeKey(username)
	stored, err := cache.Take(ctx, s.cache, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return ErrMFAChallengeNotFound
		}
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return ErrMFAChallengeMismatch
	}
	return nil
}
