package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tenantauth/internal/autherr"
	"github.com/MrEthical07/tenantauth/internal/domain"
)

// DefaultStoreTimeout bounds each principal store call.
const DefaultStoreTimeout = 2 * time.Second

// Store wraps a domain.PrincipalStore with a per-call timeout and is the one
// place where adapter errors become autherr kinds.
type Store struct {
	inner   domain.PrincipalStore
	timeout time.Duration
}

func NewStore(inner domain.PrincipalStore, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &Store{inner: inner, timeout: timeout}
}

func (s *Store) PrincipalByUsername(ctx context.Context, username string) (*domain.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	p, err := s.inner.PrincipalByUsername(ctx, username)
	return p, translateStoreError(err)
}

func (s *Store) PrincipalByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	p, err := s.inner.PrincipalByEmail(ctx, email)
	return p, translateStoreError(err)
}

func (s *Store) PrincipalByUUID(ctx context.Context, uuid string) (*domain.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	p, err := s.inner.PrincipalByUUID(ctx, uuid)
	return p, translateStoreError(err)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, uuid, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return translateStoreError(s.inner.UpdatePasswordHash(ctx, uuid, hash))
}

func (s *Store) UpdateMFA(ctx context.Context, uuid string, enabled bool, secret string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return translateStoreError(s.inner.UpdateMFA(ctx, uuid, enabled, secret))
}

func (s *Store) CreatePrincipal(ctx context.Context, p domain.Principal) (*domain.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, err := s.inner.CreatePrincipal(ctx, p)
	return out, translateStoreError(err)
}

func (s *Store) UpdateProfile(ctx context.Context, uuid string, u domain.ProfileUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return translateStoreError(s.inner.UpdateProfile(ctx, uuid, u))
}

func translateStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return autherr.ErrNotFound.Wrap(err)
	case errors.Is(err, domain.ErrConflict):
		return autherr.ErrConflict.Wrap(err)
	default:
		return autherr.ErrUnavailable.Wrap(err)
	}
}

func isNotFound(err error) bool {
	return autherr.KindOf(err) == autherr.KindNotFound
}
