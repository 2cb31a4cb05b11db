package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/tenantauth/internal/autherr"
)

// SignOutResult reports what RunSignOut revoked.
type SignOutResult struct {
	PrincipalUUID  string
	AccessRevoked  bool
	RefreshRevoked bool
}

// RunSignOut blacklists whichever of the two tokens is still live. A call
// that changes nothing fails with AlreadySignedOut.
func RunSignOut(ctx context.Context, d Deps, accessToken, refreshToken string) (*SignOutResult, error) {
	if refreshToken == "" {
		return nil, autherr.ErrRefreshTokenMissing
	}

	accessClaims, accessErr := d.Tokens.DecodeAccess(accessToken)
	refreshClaims, refreshErr := d.Tokens.DecodeRefresh(refreshToken)
	if accessErr != nil && refreshErr != nil {
		return nil, autherr.ErrAlreadySignedOut
	}

	res := &SignOutResult{}
	if accessErr == nil {
		revoked, err := d.revokeIfLive(ctx, accessToken, accessClaims.ExpiresAtTime())
		if err != nil {
			return nil, err
		}
		res.AccessRevoked = revoked
		res.PrincipalUUID = accessClaims.Subject
	}
	if refreshErr == nil {
		revoked, err := d.revokeIfLive(ctx, refreshToken, refreshClaims.ExpiresAtTime())
		if err != nil {
			return nil, err
		}
		res.RefreshRevoked = revoked
		if res.PrincipalUUID == "" {
			res.PrincipalUUID = refreshClaims.Subject
		}
	}
	if !res.AccessRevoked && !res.RefreshRevoked {
		return nil, autherr.ErrAlreadySignedOut
	}

	d.invalidateMember(ctx, res.PrincipalUUID)
	return res, nil
}

// RefreshResult carries the new Access token and, when rotation is on, the
// replacement Refresh token.
type RefreshResult struct {
	PrincipalUUID    string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RunRefresh issues a new Access token for a live Refresh token.
func RunRefresh(ctx context.Context, d Deps, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, autherr.ErrRefreshTokenMissing
	}
	revoked, err := d.isRevoked(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, autherr.ErrSessionExpired
	}
	claims, err := d.Tokens.DecodeRefresh(refreshToken)
	if err != nil {
		return nil, autherr.ErrInvalidToken.Wrap(err)
	}

	access, accessExp, err := d.Tokens.IssueAccess(claims.Subject)
	if err != nil {
		return nil, autherr.ErrUnavailable.Wrap(err)
	}
	res := &RefreshResult{
		PrincipalUUID:   claims.Subject,
		AccessToken:     access,
		AccessExpiresAt: accessExp,
	}
	if !d.RotateRefresh {
		return res, nil
	}

	next, nextExp, err := d.Tokens.IssueRefresh(claims.Subject)
	if err != nil {
		return nil, autherr.ErrUnavailable.Wrap(err)
	}
	revokedOld, err := d.revokeIfLive(ctx, refreshToken, claims.ExpiresAtTime())
	if err != nil {
		return nil, err
	}
	if !revokedOld {
		// Lost a race with a concurrent refresh or sign-out of the same token.
		return nil, autherr.ErrSessionExpired
	}
	res.RefreshToken = next
	res.RefreshExpiresAt = nextExp
	return res, nil
}

// rotateSession revokes the presented tokens and issues a fresh pair. Tokens
// that no longer decode, or whose subject is another principal, are skipped.
func (d Deps) rotateSession(ctx context.Context, principalUUID, accessToken, refreshToken string) (TokenPair, error) {
	if claims, err := d.Tokens.DecodeAccess(accessToken); err == nil && claims.Subject == principalUUID {
		if _, err := d.revokeIfLive(ctx, accessToken, claims.ExpiresAtTime()); err != nil {
			return TokenPair{}, err
		}
	}
	if refreshToken != "" {
		if claims, err := d.Tokens.DecodeRefresh(refreshToken); err == nil && claims.Subject == principalUUID {
			if _, err := d.revokeIfLive(ctx, refreshToken, claims.ExpiresAtTime()); err != nil {
				return TokenPair{}, err
			}
		}
	}
	pair, err := d.issuePair(principalUUID)
	if err != nil {
		return TokenPair{}, err
	}
	d.invalidateMember(ctx, principalUUID)
	return pair, nil
}
