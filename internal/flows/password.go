package flows

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/MrEthical07/tenantauth/internal/autherr"
	"github.com/MrEthical07/tenantauth/internal/stores"
	"github.com/MrEthical07/tenantauth/jwt"
)

// ForgotPasswordResult is empty when the email matched nobody.
type ForgotPasswordResult struct {
	PrincipalUUID string
	Sent          bool
}

// RunForgotPassword mails a single-use reset link. Unknown, inactive and
// deleted addresses return success without sending anything.
func RunForgotPassword(ctx context.Context, d Deps, email string) (*ForgotPasswordResult, error) {
	if d.Limiter != nil {
		if err := limit(d.Limiter.AllowForgotPassword(ctx, email)); err != nil {
			return nil, err
		}
	}

	p, err := d.Store.PrincipalByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return &ForgotPasswordResult{}, nil
		}
		return nil, err
	}
	if !p.IsActive || p.Deleted() {
		return &ForgotPasswordResult{}, nil
	}

	token, exp, err := d.Tokens.IssuePasswordReset(p.UUID)
	if err != nil {
		return nil, autherr.ErrUnavailable.Wrap(err)
	}
	// Cache TTL and signature TTL come from the same exp.
	if err := d.Resets.Save(ctx, token, p.Email, exp.Sub(d.now())); err != nil {
		return nil, cacheError(err)
	}

	if err := d.Mailer.Send(ctx, p.Email, d.ResetSubject, resetBody(d.resetLink(token))); err != nil {
		return nil, autherr.ErrUnavailable.Wrap(err)
	}
	return &ForgotPasswordResult{PrincipalUUID: p.UUID, Sent: true}, nil
}

// RunResetPassword completes a reset. Cache absence is authoritative: a token
// whose entry was consumed or expired fails even if its signature is valid.
func RunResetPassword(ctx context.Context, d Deps, resetToken, newPassword, confirm string) (string, error) {
	claims, err := d.Tokens.DecodePasswordReset(resetToken)
	if err != nil {
		return "", autherr.ErrInvalidToken.Wrap(err)
	}

	email, err := d.Resets.Lookup(ctx, resetToken)
	if err != nil {
		if errors.Is(err, stores.ErrResetNotFound) {
			return "", autherr.ErrInvalidToken
		}
		return "", cacheError(err)
	}
	used, err := d.Resets.IsUsed(ctx, email, issuedAt(claims))
	if err != nil {
		return "", cacheError(err)
	}
	if used {
		return "", autherr.ErrInvalidToken
	}

	p, err := d.Store.PrincipalByUUID(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			return "", autherr.ErrInvalidToken
		}
		return "", err
	}
	if !strings.EqualFold(p.Email, email) || p.Deleted() {
		return "", autherr.ErrInvalidToken
	}

	if violations := d.Policy.Validate(newPassword, confirm, p.Username); len(violations) > 0 {
		return "", autherr.ErrPasswordPolicyViolation.WithDetails(violations...)
	}

	// Hold the marker for a full token lifetime so that every link issued
	// before this reset expires while it is still spent.
	hold := d.now().Add(claims.ExpiresAtTime().Sub(issuedAt(claims)))
	if err := d.Resets.Consume(ctx, resetToken, email, hold); err != nil {
		if errors.Is(err, stores.ErrResetNotFound) {
			return "", autherr.ErrInvalidToken
		}
		return "", cacheError(err)
	}

	hash, err := d.Hasher.Hash(newPassword)
	if err != nil {
		return "", autherr.ErrUnavailable.Wrap(err)
	}
	if err := d.Store.UpdatePasswordHash(ctx, p.UUID, hash); err != nil {
		return "", err
	}
	d.invalidateMember(ctx, p.UUID)
	return p.UUID, nil
}

// RunChangePassword replaces the password of the session owner and rotates
// the presented tokens.
func RunChangePassword(ctx context.Context, d Deps, accessToken, refreshToken, current, newPassword, confirm string) (*ProfileResult, error) {
	claims, err := d.sessionClaims(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	p, err := d.activePrincipal(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	ok, err := d.Hasher.Verify(current, p.PasswordHash)
	if err != nil || !ok {
		return nil, autherr.ErrInvalidCurrentPassword
	}
	if violations := d.Policy.Validate(newPassword, confirm, p.Username); len(violations) > 0 {
		return nil, autherr.ErrPasswordPolicyViolation.WithDetails(violations...)
	}
	if newPassword == current {
		return nil, autherr.ErrPasswordReused
	}

	hash, err := d.Hasher.Hash(newPassword)
	if err != nil {
		return nil, autherr.ErrUnavailable.Wrap(err)
	}
	if err := d.Store.UpdatePasswordHash(ctx, p.UUID, hash); err != nil {
		return nil, err
	}

	pair, err := d.rotateSession(ctx, p.UUID, accessToken, refreshToken)
	if err != nil {
		return nil, err
	}
	return &ProfileResult{TokenPair: pair, Principal: p.Public()}, nil
}

func issuedAt(c *jwt.Claims) time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

func (d Deps) resetLink(token string) string {
	if d.ResetLink == nil {
		return token
	}
	return d.ResetLink(token)
}

func resetBody(link string) string {
	return `<p>A password reset was requested for your account.</p>` +
		`<p><a href="` + html.EscapeString(link) + `">Reset your password</a></p>` +
		`<p>If you did not request this, you can ignore this email.</p>`
}
