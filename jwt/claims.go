package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates the four token variants. It is carried in the typ claim.
type Kind string

const (
	KindAccess        Kind = "access"
	KindRefresh       Kind = "refresh"
	KindMFAChallenge  Kind = "mfa_challenge"
	KindPasswordReset Kind = "password_reset"
)

// Claims is the decoded body of any token kind. Access and Refresh tokens
// carry only the registered claims; the subject is the principal uuid for
// every kind except MFA-Challenge, whose subject is the username.
type Claims struct {
	Type Kind `json:"typ"`
	jwt.RegisteredClaims
}

// ExpiresAtTime returns the exp claim, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Remaining returns how long the token stays valid after now. It is never negative.
func (c *Claims) Remaining(now time.Time) time.Duration {
	d := c.ExpiresAtTime().Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (c *Claims) validateFor(kind Kind, now time.Time, maxFutureIAT time.Duration) error {
	if c.Type != kind {
		return fmt.Errorf("token kind %q, want %q", c.Type, kind)
	}
	if c.Subject == "" {
		return errors.New("missing subject")
	}
	if c.ExpiresAt == nil {
		return errors.New("missing expiry")
	}
	// Leeway never extends exp: revocation entries live exactly until exp.
	if !now.Before(c.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	if c.IssuedAt != nil && maxFutureIAT > 0 && c.IssuedAt.Time.After(now.Add(maxFutureIAT)) {
		return errors.New("token iat too far in the future")
	}
	if kind == KindPasswordReset {
		if _, err := uuid.Parse(c.Subject); err != nil {
			return errors.New("password reset subject is not a uuid")
		}
	}
	return nil
}
