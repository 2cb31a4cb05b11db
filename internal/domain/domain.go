// Package domain holds the data model shared by the engine, its flows, and
// store adapters. The root package re-exports these types.
package domain

import (
	"context"
	"errors"
	"time"
)

// GlobalRole is the platform-wide role of a principal, independent of any
// service membership.
type GlobalRole string

const (
	RoleSuperAdmin GlobalRole = "superadmin"
	RoleAdmin      GlobalRole = "admin"
	RoleStaff      GlobalRole = "staff"
	RoleMember     GlobalRole = "member"
	RoleGuest      GlobalRole = "guest"
)

// Valid reports whether r is one of the known global roles.
func (r GlobalRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleStaff, RoleMember, RoleGuest:
		return true
	}
	return false
}

// ServiceMembership is one (principal, service) row. It is read-only here.
type ServiceMembership struct {
	ServiceID     string `json:"service_id"`
	ServiceName   string `json:"service_name"`
	Description   string `json:"description,omitempty"`
	Role          string `json:"role"`
	MemberActive  bool   `json:"member_active"`
	ServiceActive bool   `json:"service_active"`
}

// Principal is an account and its memberships. PasswordHash and MFASecret are
// populated by stores but never cached or serialized to clients.
type Principal struct {
	UUID         string              `json:"uuid"`
	Username     string              `json:"username"`
	Email        string              `json:"email"`
	PasswordHash string              `json:"-"`
	Role         GlobalRole          `json:"role"`
	IsActive     bool                `json:"is_active"`
	MFAEnabled   bool                `json:"mfa_enabled"`
	MFASecret    string              `json:"-"`
	DeletedAt    *time.Time          `json:"deleted_at,omitempty"`
	Memberships  []ServiceMembership `json:"memberships"`
}

// Deleted reports whether the principal carries a soft-delete marker.
func (p *Principal) Deleted() bool {
	return p.DeletedAt != nil
}

// Membership returns the membership for serviceID, if any.
func (p *Principal) Membership(serviceID string) (ServiceMembership, bool) {
	for _, m := range p.Memberships {
		if m.ServiceID == serviceID {
			return m, true
		}
	}
	return ServiceMembership{}, false
}

// Public returns a copy with secret fields cleared.
func (p *Principal) Public() *Principal {
	out := *p
	out.PasswordHash = ""
	out.MFASecret = ""
	out.Memberships = append([]ServiceMembership(nil), p.Memberships...)
	return &out
}

// AuthorizationContext is the resolved view of a principal against one service.
type AuthorizationContext struct {
	PrincipalUUID string     `json:"principal_uuid"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	GlobalRole    GlobalRole `json:"global_role"`
	ServiceID     string     `json:"service_id"`
	ServiceName   string     `json:"service_name"`
	Role          string     `json:"role"`
	Active        bool       `json:"active"`
	ServiceActive bool       `json:"service_active"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

// HasRole reports whether the per-service role is one of roles.
func (a *AuthorizationContext) HasRole(roles ...string) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

var (
	// ErrNotFound is reported by store adapters when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is reported by store adapters on uniqueness or reference violations.
	ErrConflict = errors.New("record conflict")
)

// PrincipalStore is the relational store consumed by the engine. Lookups
// return the principal together with its flattened memberships.
type PrincipalStore interface {
	PrincipalByUsername(ctx context.Context, username string) (*Principal, error)
	PrincipalByEmail(ctx context.Context, email string) (*Principal, error)
	PrincipalByUUID(ctx context.Context, uuid string) (*Principal, error)
	UpdatePasswordHash(ctx context.Context, uuid, hash string) error
	UpdateMFA(ctx context.Context, uuid string, enabled bool, secret string) error
	// CreatePrincipal inserts p without memberships. An empty UUID is assigned
	// by the store. Duplicate usernames or emails fail with ErrConflict.
	CreatePrincipal(ctx context.Context, p Principal) (*Principal, error)
	// UpdateProfile changes the non-empty fields of u on a live principal.
	UpdateProfile(ctx context.Context, uuid string, u ProfileUpdate) error
}

// ProfileUpdate carries the self-service profile fields. Empty fields keep
// their stored value.
type ProfileUpdate struct {
	Username string
	Email    string
}

// Empty reports whether u changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Username == "" && u.Email == ""
}

// Mailer delivers outbound email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
