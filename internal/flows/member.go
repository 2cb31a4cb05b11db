package flows

import (
	"context"

	"github.com/MrEthical07/tenantauth/internal/autherr"
	"github.com/MrEthical07/tenantauth/internal/domain"
	"github.com/MrEthical07/tenantauth/jwt"
)

// ProfileResult is the session owner's public record. TokenPair is set only
// by operations that rotate the session.
type ProfileResult struct {
	TokenPair
	Principal *domain.Principal
}

// MFAUpdateResult describes the outcome of RunUpdateMFA. Pending is set when
// enrollment awaits a confirming code; no tokens are rotated in that case.
type MFAUpdateResult struct {
	TokenPair
	Principal *domain.Principal
	Enabled   bool
	Pending   bool
	QRCode    string
}

// RunProfile returns the session owner through the member cache.
func RunProfile(ctx context.Context, d Deps, accessToken string) (*ProfileResult, error) {
	claims, err := d.sessionClaims(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	p, err := d.loadPrincipal(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !p.IsActive || p.Deleted() {
		return nil, autherr.ErrInactiveUser
	}
	return &ProfileResult{Principal: p.Public()}, nil
}

// RunUpdateMFA enables or disables MFA for the session owner. Disabling
// always requires a valid code. Enabling requires one only when enrollment
// confirmation is configured.
func RunUpdateMFA(ctx context.Context, d Deps, accessToken, refreshToken string, enable bool, code string) (*MFAUpdateResult, error) {
	claims, err := d.sessionClaims(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	p, err := d.activePrincipal(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	res := &MFAUpdateResult{Enabled: enable}
	switch {
	case enable && p.MFAEnabled:
		return nil, autherr.ErrMFAAlreadyEnabled

	case enable && d.RequireEnrollmentConfirmation && code == "":
		secret, err := d.OTP.GenerateSecret()
		if err != nil {
			return nil, autherr.ErrUnavailable.Wrap(err)
		}
		if err := d.Store.UpdateMFA(ctx, p.UUID, false, secret); err != nil {
			return nil, err
		}
		qr, err := d.OTP.QRCode(p.Username, secret)
		if err != nil {
			return nil, autherr.ErrUnavailable.Wrap(err)
		}
		d.invalidateMember(ctx, p.UUID)
		p.MFASecret = secret
		return &MFAUpdateResult{Principal: p.Public(), Pending: true, QRCode: qr}, nil

	case enable && d.RequireEnrollmentConfirmation:
		if p.MFASecret == "" {
			return nil, autherr.ErrMFANotEnabled
		}
		if err := d.verifyCode(p.MFASecret, code); err != nil {
			return nil, err
		}
		if err := d.Store.UpdateMFA(ctx, p.UUID, true, p.MFASecret); err != nil {
			return nil, err
		}
		if res.QRCode, err = d.OTP.QRCode(p.Username, p.MFASecret); err != nil {
			return nil, autherr.ErrUnavailable.Wrap(err)
		}

	case enable:
		secret, err := d.OTP.GenerateSecret()
		if err != nil {
			return nil, autherr.ErrUnavailable.Wrap(err)
		}
		if err := d.Store.UpdateMFA(ctx, p.UUID, true, secret); err != nil {
			return nil, err
		}
		if res.QRCode, err = d.OTP.QRCode(p.Username, secret); err != nil {
			return nil, autherr.ErrUnavailable.Wrap(err)
		}

	case !p.MFAEnabled:
		return nil, autherr.ErrMFANotEnabled

	default:
		if err := d.verifyCode(p.MFASecret, code); err != nil {
			return nil, err
		}
		if err := d.Store.UpdateMFA(ctx, p.UUID, false, ""); err != nil {
			return nil, err
		}
	}

	pair, err := d.rotateSession(ctx, p.UUID, accessToken, refreshToken)
	if err != nil {
		return nil, err
	}
	p.MFAEnabled = enable
	res.TokenPair = pair
	res.Principal = p.Public()
	return res, nil
}

// RunMFAQRCode re-renders the provisioning QR code for an enrolled principal.
func RunMFAQRCode(ctx context.Context, d Deps, accessToken string) (string, error) {
	claims, err := d.sessionClaims(ctx, accessToken)
	if err != nil {
		return "", err
	}
	p, err := d.activePrincipal(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	if !p.MFAEnabled || p.MFASecret == "" {
		return "", autherr.ErrMFANotEnabled
	}
	qr, err := d.OTP.QRCode(p.Username, p.MFASecret)
	if err != nil {
		return "", autherr.ErrUnavailable.Wrap(err)
	}
	return qr, nil
}

// RunInvalidatePrincipal drops the cached profile of uuid. Authorization
// cache entries are left to expire with their tokens.
func RunInvalidatePrincipal(ctx context.Context, d Deps, uuid string) error {
	if d.Members == nil {
		return nil
	}
	if err := d.Members.Invalidate(ctx, uuid); err != nil {
		return cacheError(err)
	}
	return nil
}

// sessionClaims checks that accessToken is live and decodes it.
func (d Deps) sessionClaims(ctx context.Context, accessToken string) (*jwt.Claims, error) {
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
	return claims, nil
}

// activePrincipal loads the full record, secrets included, from the store.
func (d Deps) activePrincipal(ctx context.Context, uuid string) (*domain.Principal, error) {
	p, err := d.Store.PrincipalByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if !p.IsActive || p.Deleted() {
		return nil, autherr.ErrInactiveUser
	}
	return p, nil
}

func (d Deps) verifyCode(secret, code string) error {
	if code == "" {
		return autherr.ErrInvalidMFACode
	}
	ok, err := d.OTP.Verify(secret, code)
	if err != nil {
		return autherr.ErrInvalidMFACode.Wrap(err)
	}
	if !ok {
		return autherr.ErrInvalidMFACode
	}
	return nil
}
