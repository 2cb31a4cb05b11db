package flows

import (
	"context"

	"github.com/MrEthical07/tenantauth/internal/autherr"
	"github.com/MrEthical07/tenantauth/internal/domain"
	"github.com/MrEthical07/tenantauth/jwt"
)

// AuthorizeResult is the resolved context plus whether it came from cache.
type AuthorizeResult struct {
	Context  *domain.AuthorizationContext
	CacheHit bool
	// CacheWriteErr is set when the resolved context could not be cached.
	CacheWriteErr error
}

// RunAuthorize resolves accessToken against serviceID. Revocation and
// signature checks run before any lookup, including the cache lookup.
func RunAuthorize(ctx context.Context, d Deps, accessToken, serviceID string) (*AuthorizeResult, error) {
	revoked, err := d.isRevoked(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, autherr.ErrTokenRevoked
	}
	claims, err := d.Tokens.DecodeAccess(accessToken)
	if err != nil {
		return nil, autherr.ErrInvalidToken.Wrap(err)
	}

	if d.Authz != nil {
		cached, err := d.Authz.Get(ctx, accessToken, serviceID)
		if err != nil {
			d.logger().WarnContext(ctx, "authorization cache read failed", "service_id", serviceID, "error", err)
		} else if cached != nil {
			return &AuthorizeResult{Context: cached, CacheHit: true}, nil
		}
	}

	p, err := d.loadPrincipal(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			return nil, autherr.ErrInvalidToken
		}
		return nil, err
	}
	ac, err := resolveMembership(p, serviceID, claims)
	if err != nil {
		return nil, err
	}

	res := &AuthorizeResult{Context: ac}
	if d.Authz != nil {
		if err := d.Authz.Put(ctx, accessToken, ac); err != nil {
			d.logger().WarnContext(ctx, "authorization cache write failed", "service_id", serviceID, "error", err)
			res.CacheWriteErr = err
		}
	}
	return res, nil
}

// RunAuthorizeRoles additionally requires the per-service role to be one of roles.
func RunAuthorizeRoles(ctx context.Context, d Deps, accessToken, serviceID string, roles ...string) (*AuthorizeResult, error) {
	res, err := RunAuthorize(ctx, d, accessToken, serviceID)
	if err != nil {
		return nil, err
	}
	if len(roles) > 0 && !res.Context.HasRole(roles...) {
		return res, autherr.ErrInsufficientPermissions
	}
	return res, nil
}

func resolveMembership(p *domain.Principal, serviceID string, claims *jwt.Claims) (*domain.AuthorizationContext, error) {
	if !p.IsActive || p.Deleted() {
		return nil, autherr.ErrInactiveUser
	}
	m, ok := p.Membership(serviceID)
	if !ok {
		return nil, autherr.ErrNotRegisteredOnService
	}
	if !m.ServiceActive {
		return nil, autherr.ErrInactiveUser
	}
	if !m.MemberActive {
		return nil, autherr.ErrServiceInactiveUser
	}
	return &domain.AuthorizationContext{
		PrincipalUUID: p.UUID,
		Username:      p.Username,
		Email:         p.Email,
		GlobalRole:    p.Role,
		ServiceID:     m.ServiceID,
		ServiceName:   m.ServiceName,
		Role:          m.Role,
		Active:        m.MemberActive,
		ServiceActive: m.ServiceActive,
		ExpiresAt:     claims.ExpiresAtTime(),
	}, nil
}

// loadPrincipal reads through the member cache. The cached copy carries no
// secrets, so callers needing the hash or MFA secret go to the store.
func (d Deps) loadPrincipal(ctx context.Context, uuid string) (*domain.Principal, error) {
	if d.Members != nil {
		p, err := d.Members.Get(ctx, uuid)
		if err != nil {
			d.logger().WarnContext(ctx, "member cache read failed", "principal_uuid", uuid, "error", err)
		} else if p != nil {
			return p, nil
		}
	}
	p, err := d.Store.PrincipalByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	d.primeMember(ctx, p)
	return p, nil
}
