// Package memory is an in-process PrincipalStore for tests and local
// development. Records are copied on the way in and out.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/tenantauth/internal/domain"
)

// Store is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	principals map[string]domain.Principal
	byUsername map[string]string
	byEmail    map[string]string

	callsMu sync.Mutex
	calls   map[string]int
}

func New() *Store {
	return &Store{
		principals: make(map[string]domain.Principal),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		calls:      make(map[string]int),
	}
}

// Put inserts or replaces p. An empty UUID is filled with a time-ordered v7
// UUID. Put fails with domain.ErrConflict when username or email belongs to
// another principal.
func (s *Store) Put(p domain.Principal) (domain.Principal, error) {
	if p.UUID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Principal{}, err
		}
		p.UUID = id.String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putLocked(p); err != nil {
		return domain.Principal{}, err
	}
	return p, nil
}

func (s *Store) putLocked(p domain.Principal) error {
	if owner, ok := s.byUsername[p.Username]; ok && owner != p.UUID {
		return domain.ErrConflict
	}
	if owner, ok := s.byEmail[strings.ToLower(p.Email)]; ok && owner != p.UUID {
		return domain.ErrConflict
	}
	if old, ok := s.principals[p.UUID]; ok {
		delete(s.byUsername, old.Username)
		delete(s.byEmail, strings.ToLower(old.Email))
	}
	p.Memberships = append([]domain.ServiceMembership(nil), p.Memberships...)
	s.principals[p.UUID] = p
	s.byUsername[p.Username] = p.UUID
	s.byEmail[strings.ToLower(p.Email)] = p.UUID
	return nil
}

// SoftDelete stamps deleted_at. Lookups keep returning the record, as the
// relational store does for rows filtered later by the caller.
func (s *Store) SoftDelete(uuid string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[uuid]
	if !ok {
		return domain.ErrNotFound
	}
	p.DeletedAt = &at
	s.principals[uuid] = p
	return nil
}

// Get returns a copy of the stored record, secrets included.
func (s *Store) Get(uuid string) (domain.Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[uuid]
	return p, ok
}

// Calls reports how many times method was invoked.
func (s *Store) Calls(method string) int {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	return s.calls[method]
}

func (s *Store) count(method string) {
	s.callsMu.Lock()
	s.calls[method]++
	s.callsMu.Unlock()
}

func (s *Store) PrincipalByUsername(ctx context.Context, username string) (*domain.Principal, error) {
	s.count("PrincipalByUsername")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(s.byUsername[username])
}

func (s *Store) PrincipalByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	s.count("PrincipalByEmail")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(s.byEmail[strings.ToLower(email)])
}

func (s *Store) PrincipalByUUID(ctx context.Context, uuid string) (*domain.Principal, error) {
	s.count("PrincipalByUUID")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(uuid)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, uuid, hash string) error {
	s.count("UpdatePasswordHash")
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[uuid]
	if !ok {
		return domain.ErrNotFound
	}
	p.PasswordHash = hash
	s.principals[uuid] = p
	return nil
}

func (s *Store) UpdateMFA(ctx context.Context, uuid string, enabled bool, secret string) error {
	s.count("UpdateMFA")
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[uuid]
	if !ok {
		return domain.ErrNotFound
	}
	p.MFAEnabled = enabled
	p.MFASecret = secret
	s.principals[uuid] = p
	return nil
}

// CreatePrincipal never replaces: a taken UUID, username or email fails with
// domain.ErrConflict.
func (s *Store) CreatePrincipal(ctx context.Context, p domain.Principal) (*domain.Principal, error) {
	s.count("CreatePrincipal")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.UUID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		p.UUID = id.String()
	}
	p.Memberships = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.principals[p.UUID]; ok {
		return nil, domain.ErrConflict
	}
	if err := s.putLocked(p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile fails with domain.ErrNotFound for soft-deleted principals.
func (s *Store) UpdateProfile(ctx context.Context, uuid string, u domain.ProfileUpdate) error {
	s.count("UpdateProfile")
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[uuid]
	if !ok || p.Deleted() {
		return domain.ErrNotFound
	}
	if u.Username != "" {
		p.Username = u.Username
	}
	if u.Email != "" {
		p.Email = u.Email
	}
	return s.putLocked(p)
}

func (s *Store) lookupLocked(uuid string) (*domain.Principal, error) {
	p, ok := s.principals[uuid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p.Memberships = append([]domain.ServiceMembership(nil), p.Memberships...)
	return &p, nil
}
