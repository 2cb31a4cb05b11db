package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tenantauth/internal/autherr"
	"github.com/MrEthical07/tenantauth/internal/domain"
	"github.com/MrEthical07/tenantauth/internal/stores"
)

// SignInResult carries either a session token pair or an MFA challenge.
type SignInResult struct {
	TokenPair
	PrincipalUUID string
	MFARequired   bool
	MFAToken      string
	MFAExpiresAt  time.Time
}

// RunSignIn verifies username and password. Principals with MFA enabled get a
// challenge token instead of session tokens.
func RunSignIn(ctx context.Context, d Deps, username, password string) (*SignInResult, error) {
	if d.Limiter != nil {
		if err := limit(d.Limiter.CheckSignIn(ctx, username)); err != nil {
			return nil, err
		}
	}

	p, err := d.Store.PrincipalByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			d.recordSignInFailure(ctx, username)
			return nil, autherr.ErrInvalidCredentials
		}
		return nil, err
	}
	if p.Deleted() {
		d.recordSignInFailure(ctx, username)
		return nil, autherr.ErrInvalidCredentials
	}
	if !p.IsActive {
		return nil, autherr.ErrInactiveUser
	}

	ok, err := d.Hasher.Verify(password, p.PasswordHash)
	if err != nil {
		d.logger().WarnContext(ctx, "stored password hash rejected", "principal_uuid", p.UUID, "error", err)
	}
	if err != nil || !ok {
		d.recordSignInFailure(ctx, username)
		return nil, autherr.ErrInvalidCredentials
	}

	if p.MFAEnabled {
		token, exp, err := d.Tokens.IssueMFAChallenge(p.Username)
		if err != nil {
			return nil, autherr.ErrUnavailable.Wrap(err)
		}
		if err := d.Challenges.Save(ctx, p.Username, token, exp.Sub(d.now())); err != nil {
			return nil, cacheError(err)
		}
		return &SignInResult{
			PrincipalUUID: p.UUID,
			MFARequired:   true,
			MFAToken:      token,
			MFAExpiresAt:  exp,
		}, nil
	}

	return d.completeSignIn(ctx, p)
}

// RunVerifyMFA completes a challenged sign-in. The challenge is consumed
// exactly once; a replay fails with InvalidMFAToken.
func RunVerifyMFA(ctx context.Context, d Deps, username, challengeToken, code string) (*SignInResult, error) {
	if err := d.Challenges.Verify(ctx, username, challengeToken); err != nil {
		if errors.Is(err, stores.ErrMFAChallengeNotFound) || errors.Is(err, stores.ErrMFAChallengeMismatch) {
			return nil, autherr.ErrInvalidMFAToken
		}
		return nil, cacheError(err)
	}

	claims, err := d.Tokens.DecodeMFAChallenge(challengeToken)
	if err != nil || claims.Subject != username {
		return nil, autherr.ErrInvalidMFAToken
	}

	p, err := d.Store.PrincipalByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			return nil, autherr.ErrInvalidMFAToken
		}
		return nil, err
	}
	if p.Deleted() || !p.MFAEnabled || p.MFASecret == "" {
		return nil, autherr.ErrInvalidMFAToken
	}
	if !p.IsActive {
		return nil, autherr.ErrInactiveUser
	}

	if d.Limiter != nil {
		if err := limit(d.Limiter.CheckMFA(ctx, username)); err != nil {
			return nil, err
		}
	}
	ok, err := d.OTP.Verify(p.MFASecret, code)
	if err != nil || !ok {
		if d.Limiter != nil {
			if rerr := d.Limiter.RecordMFAFailure(ctx, username); rerr != nil {
				d.logger().WarnContext(ctx, "mfa throttle update failed", "username", username, "error", rerr)
			}
		}
		if err != nil {
			return nil, autherr.ErrInvalidMFACode.Wrap(err)
		}
		return nil, autherr.ErrInvalidMFACode
	}

	if err := d.Challenges.Consume(ctx, username, challengeToken); err != nil {
		if errors.Is(err, stores.ErrMFAChallengeNotFound) || errors.Is(err, stores.ErrMFAChallengeMismatch) {
			return nil, autherr.ErrInvalidMFAToken
		}
		return nil, cacheError(err)
	}

	return d.completeSignIn(ctx, p)
}

func (d Deps) completeSignIn(ctx context.Context, p *domain.Principal) (*SignInResult, error) {
	pair, err := d.issuePair(p.UUID)
	if err != nil {
		return nil, err
	}
	d.primeMember(ctx, p)
	d.resetSignIn(ctx, p.Username)
	return &SignInResult{TokenPair: pair, PrincipalUUID: p.UUID}, nil
}
