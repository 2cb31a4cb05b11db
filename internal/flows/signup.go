package flows

import (
	"context"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrEthical07/tenantauth/internal/autherr"
	"github.com/MrEthical07/tenantauth/internal/domain"
)

const (
	minIdentifierLen = 5
	maxIdentifierLen = 255
)

// SignUpRequest is the registration input. EnableMFA provisions a TOTP secret
// in the same call.
type SignUpRequest struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
	EnableMFA       bool
}

// SignUpResult carries the created principal. QRCode is set when MFA was
// requested; MFAPending is set when that secret still awaits a confirming
// code through RunUpdateMFA.
type SignUpResult struct {
	Principal  *domain.Principal
	QRCode     string
	MFAPending bool
}

// RunSignUp registers a principal with the global member role and no
// memberships. It issues no tokens.
func RunSignUp(ctx context.Context, d Deps, req SignUpRequest) (*SignUpResult, error) {
	if violations := profileViolations(req.Username, req.Email, true); len(violations) > 0 {
		return nil, autherr.ErrInvalidProfile.WithDetails(violations...)
	}
	if violations := d.Policy.Validate(req.Password, req.PasswordConfirm, req.Username); len(violations) > 0 {
		return nil, autherr.ErrPasswordPolicyViolation.WithDetails(violations...)
	}

	hash, err := d.Hasher.Hash(req.Password)
	if err != nil {
		return nil, autherr.ErrUnavailable.Wrap(err)
	}
	p := domain.Principal{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         domain.RoleMember,
		IsActive:     d.ActivateOnSignUp,
	}

	res := &SignUpResult{}
	if req.EnableMFA {
		secret, err := d.OTP.GenerateSecret()
		if err != nil {
			return nil, autherr.ErrUnavailable.Wrap(err)
		}
		if res.QRCode, err = d.OTP.QRCode(req.Username, secret); err != nil {
			return nil, autherr.ErrUnavailable.Wrap(err)
		}
		p.MFASecret = secret
		p.MFAEnabled = !d.RequireEnrollmentConfirmation
		res.MFAPending = d.RequireEnrollmentConfirmation
	}

	created, err := d.Store.CreatePrincipal(ctx, p)
	if err != nil {
		return nil, err
	}
	res.Principal = created.Public()
	return res, nil
}

// RunUpdateProfile changes the session owner's username or email and
// rotates the presented tokens.
func RunUpdateProfile(ctx context.Context, d Deps, accessToken, refreshToken string, u domain.ProfileUpdate) (*ProfileResult, error) {
	claims, err := d.sessionClaims(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if u.Empty() {
		return nil, autherr.ErrInvalidProfile.WithDetails("nothing to update")
	}
	if violations := profileViolations(u.Username, u.Email, false); len(violations) > 0 {
		return nil, autherr.ErrInvalidProfile.WithDetails(violations...)
	}
	p, err := d.activePrincipal(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	if err := d.Store.UpdateProfile(ctx, p.UUID, u); err != nil {
		return nil, err
	}
	if u.Username != "" {
		p.Username = u.Username
	}
	if u.Email != "" {
		p.Email = u.Email
	}

	pair, err := d.rotateSession(ctx, p.UUID, accessToken, refreshToken)
	if err != nil {
		return nil, err
	}
	return &ProfileResult{TokenPair: pair, Principal: p.Public()}, nil
}

// profileViolations checks username and email. With required unset, empty
// fields are skipped.
func profileViolations(username, email string, required bool) []string {
	var out []string
	if username != "" || required {
		n := utf8.RuneCountInString(username)
		switch {
		case n < minIdentifierLen || n > maxIdentifierLen:
			out = append(out, "username must be between 5 and 255 characters")
		case strings.IndexFunc(username, unicode.IsSpace) >= 0:
			out = append(out, "username cannot contain spaces")
		}
	}
	if email != "" || required {
		addr, err := mail.ParseAddress(email)
		switch {
		case err != nil || addr.Address != email:
			out = append(out, "email is not a valid address")
		case len(email) < minIdentifierLen || len(email) > maxIdentifierLen:
			out = append(out, "email must be between 5 and 255 characters")
		}
	}
	return out
}
