package flows

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/tenantauth/internal/autherr"
	"github.com/MrEthical07/tenantauth/internal/domain"
	"github.com/MrEthical07/tenantauth/internal/rate"
	"github.com/MrEthical07/tenantauth/jwt"
)

// TokenCodec issues and decodes the four token kinds.
type TokenCodec interface {
	IssueAccess(principalUUID string) (string, time.Time, error)
	IssueRefresh(principalUUID string) (string, time.Time, error)
	IssueMFAChallenge(username string) (string, time.Time, error)
	IssuePasswordReset(principalUUID string) (string, time.Time, error)
	DecodeAccess(token string) (*jwt.Claims, error)
	DecodeRefresh(token string) (*jwt.Claims, error)
	DecodeMFAChallenge(token string) (*jwt.Claims, error)
	DecodePasswordReset(token string) (*jwt.Claims, error)
}

type RevocationStore interface {
	Revoke(ctx context.Context, token string, exp time.Time) (bool, error)
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type MFAChallengeStore interface {
	Save(ctx context.Context, username, token string, ttl time.Duration) error
	Verify(ctx context.Context, username, token string) error
	Consume(ctx context.Context, username, token string) error
}

type PasswordResetStore interface {
	Save(ctx context.Context, token, email string, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (string, error)
	IsUsed(ctx context.Context, email string, issuedAt time.Time) (bool, error)
	Consume(ctx context.Context, token, email string, holdUntil time.Time) error
}

type AuthorizationCache interface {
	Get(ctx context.Context, token, serviceID string) (*domain.AuthorizationContext, error)
	Put(ctx context.Context, token string, ac *domain.AuthorizationContext) error
}

// MemberCache is the read-through profile cache. Get returns nil, nil on a miss.
type MemberCache interface {
	Get(ctx context.Context, uuid string) (*domain.Principal, error)
	Put(ctx context.Context, p *domain.Principal) error
	Invalidate(ctx context.Context, uuid string) error
}

type OTP interface {
	GenerateSecret() (string, error)
	QRCode(username, secret string) (string, error)
	Verify(secret, code string) (bool, error)
}

type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// PasswordPolicy returns one message per violated rule.
type PasswordPolicy interface {
	Validate(password, confirm, username string) []string
}

// Limiter is satisfied by *rate.Limiter.
type Limiter interface {
	CheckSignIn(ctx context.Context, username string) error
	RecordSignInFailure(ctx context.Context, username string) error
	ResetSignIn(ctx context.Context, username string) error
	CheckMFA(ctx context.Context, username string) error
	RecordMFAFailure(ctx context.Context, username string) error
	AllowForgotPassword(ctx context.Context, email string) error
}

// Deps captures everything the flows touch.
type Deps struct {
	Tokens      TokenCodec
	Revocations RevocationStore
	Challenges  MFAChallengeStore
	Resets      PasswordResetStore
	Authz       AuthorizationCache
	Members     MemberCache
	Store       *Store
	OTP         OTP
	Hasher      Hasher
	Policy      PasswordPolicy
	Limiter     Limiter
	Mailer      domain.Mailer
	Logger      *slog.Logger
	Now         func() time.Time

	// ResetLink renders the link mailed by ForgotPassword.
	ResetLink    func(token string) string
	ResetSubject string

	RotateRefresh                 bool
	RequireEnrollmentConfirmation bool
	ActivateOnSignUp              bool
}

// TokenPair is a freshly issued Access + Refresh pair.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) issuePair(principalUUID string) (TokenPair, error) {
	access, accessExp, err := d.Tokens.IssueAccess(principalUUID)
	if err != nil {
		return TokenPair{}, autherr.ErrUnavailable.Wrap(err)
	}
	refresh, refreshExp, err := d.Tokens.IssueRefresh(principalUUID)
	if err != nil {
		return TokenPair{}, autherr.ErrUnavailable.Wrap(err)
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// primeMember and invalidateMember are best-effort: failures are logged only.
func (d Deps) primeMember(ctx context.Context, p *domain.Principal) {
	if d.Members == nil {
		return
	}
	if err := d.Members.Put(ctx, p); err != nil {
		d.logger().WarnContext(ctx, "member cache write failed", "principal_uuid", p.UUID, "error", err)
	}
}

func (d Deps) invalidateMember(ctx context.Context, uuid string) {
	if d.Members == nil || uuid == "" {
		return
	}
	if err := d.Members.Invalidate(ctx, uuid); err != nil {
		d.logger().WarnContext(ctx, "member cache invalidation failed", "principal_uuid", uuid, "error", err)
	}
}

// revokeIfLive blacklists token until exp and reports whether a new entry
// was written.
func (d Deps) revokeIfLive(ctx context.Context, token string, exp time.Time) (bool, error) {
	revoked, err := d.Revocations.Revoke(ctx, token, exp)
	if err != nil {
		return false, cacheError(err)
	}
	return revoked, nil
}

func (d Deps) isRevoked(ctx context.Context, token string) (bool, error) {
	revoked, err := d.Revocations.IsRevoked(ctx, token)
	if err != nil {
		return false, cacheError(err)
	}
	return revoked, nil
}

// limit maps limiter failures: an exhausted budget is RateLimited, a broken
// backend is Unavailable.
func limit(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrRateLimited) {
		return autherr.ErrRateLimited.Wrap(err)
	}
	return autherr.ErrUnavailable.Wrap(err)
}

func (d Deps) recordSignInFailure(ctx context.Context, username string) {
	if d.Limiter == nil {
		return
	}
	if err := d.Limiter.RecordSignInFailure(ctx, username); err != nil {
		d.logger().WarnContext(ctx, "sign-in throttle update failed", "username", username, "error", err)
	}
}

func (d Deps) resetSignIn(ctx context.Context, username string) {
	if d.Limiter == nil {
		return
	}
	if err := d.Limiter.ResetSignIn(ctx, username); err != nil {
		d.logger().WarnContext(ctx, "sign-in throttle reset failed", "username", username, "error", err)
	}
}

// cacheError translates a cache-backed store failure. Absence sentinels are
// handled by callers before reaching here.
func cacheError(err error) error {
	return autherr.ErrUnavailable.Wrap(err)
}
