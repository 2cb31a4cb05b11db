package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/tenantauth/cache"
)

var (
	ErrResetNotFound = errors.New("reset record not found")
	ErrResetUsed     = errors.New("reset already used")
)

// PasswordResetStore tracks issued reset tokens. Each issue writes two keys
// with the same TTL: the token-to-email value key, and a used marker keyed by
// email. The marker holds "false" until a reset completes, then the unix
// second of that reset; every token issued at or before it is spent.
type PasswordResetStore struct {
	cache cache.Cache
	now   func() time.Time
}

func NewPasswordResetStore(c cache.Cache, now func() time.Time) *PasswordResetStore {
	if now == nil {
		now = time.Now
	}
	return &PasswordResetStore{cache: c, now: now}
}

func resetValueKey(token string) string {
	return "password_reset:" + token
}

func resetUsedKey(email string) string {
	return "password_reset_used:" + strings.ToLower(email)
}

// Save records a freshly issued reset token for email. ttl must be the
// token's own lifetime so that usability never outlives the signature. A
// marker left by a completed reset is kept so older links stay spent.
func (s *PasswordResetStore) Save(ctx context.Context, token, email string, ttl time.Duration) error {
	if err := s.cache.Set(ctx, resetValueKey(token), email, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	_, used, err := s.cutoff(ctx, email)
	if err != nil {
		return err
	}
	if used {
		return nil
	}
	if err := s.cache.Set(ctx, resetUsedKey(email), strconv.FormatBool(false), ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Lookup returns the email bound to token. Cache absence is authoritative even
// when the token signature is still valid.
func (s *PasswordResetStore) Lookup(ctx context.Context, token string) (string, error) {
	email, err := s.cache.Get(ctx, resetValueKey(token))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return "", ErrResetNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return email, nil
}

// IsUsed reports whether a reset for email completed at or after issuedAt.
func (s *PasswordResetStore) IsUsed(ctx context.Context, email string, issuedAt time.Time) (bool, error) {
	at, used, err := s.cutoff(ctx, email)
	if err != nil || !used {
		return false, err
	}
	return !issuedAt.After(at), nil
}

func (s *PasswordResetStore) cutoff(ctx context.Context, email string) (time.Time, bool, error) {
	v, err := s.cache.Get(ctx, resetUsedKey(email))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(sec, 0), true, nil
}

// Consume takes the value key for token and records the reset on the used
// marker until holdUntil. A second call for the same token returns
// ErrResetNotFound.
func (s *PasswordResetStore) Consume(ctx context.Context, token, email string, holdUntil time.Time) error {
	owner, err := cache.Take(ctx, s.cache, resetValueKey(token))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return ErrResetNotFound
		}
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if !strings.EqualFold(owner, email) {
		return ErrResetNotFound
	}

	now := s.now()
	ttl := holdUntil.Sub(now)
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, resetUsedKey(email), strconv.FormatInt(now.Unix(), 10), ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
