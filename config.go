package tenantauth

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/tenantauth/jwt"
)

// Config defines a public type used by tenantauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT            JWTConfig
	Password       PasswordConfig
	PasswordPolicy PasswordPolicyConfig
	MFA            MFAConfig
	PasswordReset  PasswordResetConfig
	Cache          CacheConfig
	Store          StoreConfig
	Security       SecurityConfig
	Cookie         CookieConfig
	Audit          AuditConfig
	Metrics        MetricsConfig

	// Now overrides the clock used by tokens, caches and TOTP. Nil means time.Now.
	Now func() time.Time
}

/*
====================================
JWT CONFIG
====================================
*/

// KeyConfig holds the key material and lifetime of one token kind.
type KeyConfig = jwt.KeyConfig

// SigningMethod selects the algorithm for one token kind.
type SigningMethod = jwt.SigningMethod

const (
	SigningMethodEd25519 = jwt.MethodEd25519
	SigningMethodHS256   = jwt.MethodHS256
)

// JWTConfig defines a public type used by tenantauth APIs.
//
// Each kind is signed with its own key. HS256 secrets must differ pairwise.
// Leeway tolerates issuer clock skew on iat and nbf; exp is always strict.
type JWTConfig struct {
	Issuer       string
	Leeway       time.Duration
	MaxFutureIAT time.Duration

	Access        KeyConfig
	Refresh       KeyConfig
	MFAChallenge  KeyConfig
	PasswordReset KeyConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by tenantauth APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordPolicyConfig controls the rules applied by ResetPassword and ChangePassword.
type PasswordPolicyConfig struct {
	MinLength           int
	SimilarityThreshold float64
	RequireUpper        bool
	RequireLower        bool
	RequireDigit        bool
	RequireSpecial      bool
}

/*
====================================
MFA CONFIG
====================================
*/

// MFAConfig defines a public type used by tenantauth APIs.
//
// With RequireEnrollmentConfirmation set, UpdateMFA stores a pending secret
// first and only enables MFA after a valid code is submitted.
type MFAConfig struct {
	Issuer                        string
	QRCodeSize                    int
	RequireEnrollmentConfirmation bool
	MaxVerifyAttempts             int
	VerifyCooldown                time.Duration
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// ResetTokenPlaceholder is replaced by the reset token in PasswordResetConfig.LinkTemplate.
const ResetTokenPlaceholder = "{token}"

// PasswordResetConfig defines a public type used by tenantauth APIs.
type PasswordResetConfig struct {
	// LinkTemplate is the URL mailed to the principal. It must contain ResetTokenPlaceholder.
	LinkTemplate string
	Subject      string
}

/*
====================================
CACHE / STORE CONFIG
====================================
*/

// CacheConfig defines a public type used by tenantauth APIs.
//
// OperationTimeout bounds each Redis call made through WithRedis. LocalSize
// bounds the in-process LRU behind the authorization and member caches when
// no Redis client is given. Revocation and single-use keys are never held in
// that LRU.
type CacheConfig struct {
	OperationTimeout time.Duration
	MemberTTL        time.Duration
	LocalSize        int
}

// StoreConfig defines a public type used by tenantauth APIs.
type StoreConfig struct {
	OperationTimeout time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by tenantauth APIs.
//
// Throttles are backed by Redis and are inactive when the engine is built
// without a Redis client.
type SecurityConfig struct {
	RotateRefreshTokens bool

	// ActivateOnSignUp creates self-registered principals active. Off, they
	// cannot sign in until an operator activates them.
	ActivateOnSignUp bool

	EnableSignInThrottle bool
	MaxSignInAttempts    int
	SignInCooldown       time.Duration

	MaxForgotPasswordRequests int
	ForgotPasswordCooldown    time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig shapes the refresh cookie produced by RefreshCookie.
type CookieConfig struct {
	Name   string
	Secure bool
	Domain string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by tenantauth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by tenantauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Key material is left
// empty and must be supplied before Build.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			MaxFutureIAT:  10 * time.Minute,
			Access:        KeyConfig{SigningMethod: jwt.MethodHS256, TTL: 15 * time.Minute},
			Refresh:       KeyConfig{SigningMethod: jwt.MethodHS256, TTL: 24 * time.Hour},
			MFAChallenge:  KeyConfig{SigningMethod: jwt.MethodHS256, TTL: 3 * time.Minute},
			PasswordReset: KeyConfig{SigningMethod: jwt.MethodHS256, TTL: 15 * time.Minute},
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		PasswordPolicy: PasswordPolicyConfig{
			MinLength:           8,
			SimilarityThreshold: 0.7,
			RequireUpper:        true,
			RequireLower:        true,
			RequireDigit:        true,
			RequireSpecial:      true,
		},
		MFA: MFAConfig{
			Issuer:            "Auth Service",
			QRCodeSize:        250,
			MaxVerifyAttempts: 5,
			VerifyCooldown:    5 * time.Minute,
		},
		PasswordReset: PasswordResetConfig{
			LinkTemplate: "http://localhost:3000/reset-password?token={token}",
			Subject:      "Password Reset Request",
		},
		Cache: CacheConfig{
			OperationTimeout: 200 * time.Millisecond,
			MemberTTL:        time.Hour,
			LocalSize:        100_000,
		},
		Store: StoreConfig{
			OperationTimeout: 2 * time.Second,
		},
		Security: SecurityConfig{
			RotateRefreshTokens:       false,
			EnableSignInThrottle:      true,
			MaxSignInAttempts:         5,
			SignInCooldown:            15 * time.Minute,
			MaxForgotPasswordRequests: 3,
			ForgotPasswordCooldown:    15 * time.Minute,
		},
		Cookie: CookieConfig{
			Name: "refresh_token_app",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// HighSecurityConfig returns DefaultConfig with rotation, enrollment
// confirmation and secure cookies switched on and shorter lifetimes.
func HighSecurityConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Access.TTL = 5 * time.Minute
	cfg.JWT.Refresh.TTL = 12 * time.Hour
	cfg.Security.RotateRefreshTokens = true
	cfg.Security.MaxSignInAttempts = 3
	cfg.MFA.RequireEnrollmentConfirmation = true
	cfg.MFA.MaxVerifyAttempts = 3
	cfg.Cookie.Secure = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	for _, kc := range []*KeyConfig{&out.JWT.Access, &out.JWT.Refresh, &out.JWT.MFAChallenge, &out.JWT.PasswordReset} {
		kc.PrivateKey = cloneBytes(kc.PrivateKey)
		kc.PublicKey = cloneBytes(kc.PublicKey)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate returns an ErrInvalidConfig error naming the first invalid field.
// Key material is checked again, in depth, by the token codec at Build.
func (c *Config) Validate() error {
	for _, k := range []struct {
		name string
		cfg  KeyConfig
	}{
		{"Access", c.JWT.Access},
		{"Refresh", c.JWT.Refresh},
		{"MFAChallenge", c.JWT.MFAChallenge},
		{"PasswordReset", c.JWT.PasswordReset},
	} {
		if k.cfg.TTL <= 0 {
			return invalidConfig("JWT %s TTL must be > 0", k.name)
		}
		if k.cfg.SigningMethod != jwt.MethodHS256 && k.cfg.SigningMethod != jwt.MethodEd25519 {
			return invalidConfig("JWT %s uses unsupported signing method %q", k.name, k.cfg.SigningMethod)
		}
		if k.cfg.SigningMethod == jwt.MethodHS256 && len(k.cfg.PrivateKey) == 0 {
			return invalidConfig("JWT %s hs256 requires PrivateKey", k.name)
		}
		if k.cfg.SigningMethod == jwt.MethodEd25519 && len(k.cfg.PrivateKey) == 0 && len(k.cfg.PublicKey) == 0 {
			return invalidConfig("JWT %s ed25519 requires PrivateKey or PublicKey", k.name)
		}
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return invalidConfig("JWT Leeway must be within [0, 2m]")
	}
	if c.JWT.MaxFutureIAT < 0 {
		return invalidConfig("JWT MaxFutureIAT must be >= 0")
	}

	if c.PasswordPolicy.MinLength < 8 {
		return invalidConfig("PasswordPolicy MinLength must be >= 8")
	}
	if c.PasswordPolicy.SimilarityThreshold <= 0 || c.PasswordPolicy.SimilarityThreshold > 1 {
		return invalidConfig("PasswordPolicy SimilarityThreshold must be within (0, 1]")
	}

	if c.MFA.MaxVerifyAttempts < 0 || c.MFA.VerifyCooldown < 0 {
		return invalidConfig("MFA throttle values must be >= 0")
	}
	if c.MFA.QRCodeSize < 0 {
		return invalidConfig("MFA QRCodeSize must be >= 0")
	}

	if !strings.Contains(c.PasswordReset.LinkTemplate, ResetTokenPlaceholder) {
		return invalidConfig("PasswordReset LinkTemplate must contain %s", ResetTokenPlaceholder)
	}
	if strings.TrimSpace(c.PasswordReset.Subject) == "" {
		return invalidConfig("PasswordReset Subject must not be empty")
	}

	if c.Cache.OperationTimeout <= 0 {
		return invalidConfig("Cache OperationTimeout must be > 0")
	}
	if c.Cache.MemberTTL <= 0 {
		return invalidConfig("Cache MemberTTL must be > 0")
	}
	if c.Cache.LocalSize <= 0 {
		return invalidConfig("Cache LocalSize must be > 0")
	}
	if c.Store.OperationTimeout <= 0 {
		return invalidConfig("Store OperationTimeout must be > 0")
	}

	if c.Security.EnableSignInThrottle && (c.Security.MaxSignInAttempts <= 0 || c.Security.SignInCooldown <= 0) {
		return invalidConfig("Security sign-in throttle requires MaxSignInAttempts and SignInCooldown > 0")
	}
	if c.Security.MaxForgotPasswordRequests < 0 || c.Security.ForgotPasswordCooldown < 0 {
		return invalidConfig("Security forgot-password throttle values must be >= 0")
	}

	if strings.TrimSpace(c.Cookie.Name) == "" {
		return invalidConfig("Cookie Name must not be empty")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalidConfig("Audit BufferSize must be > 0 when enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return invalidConfig("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

func invalidConfig(format string, args ...any) error {
	return ErrInvalidConfig.WithDetails(fmt.Sprintf(format, args...))
}

/*
====================================
LINT
====================================
*/

// LintWarning is one advisory finding. Lint warnings never block Build.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}

// Lint reports settings that are valid but risky in production.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if c.JWT.Access.TTL > time.Hour {
		add("access_ttl_long", "access tokens live longer than 1h; revocation is the only way to cut them short")
	}
	if c.JWT.Refresh.TTL > 7*24*time.Hour {
		add("refresh_ttl_long", "refresh tokens live longer than 7 days")
	}
	if c.JWT.Leeway > time.Minute {
		add("leeway_large", "clock leeway above 1m accepts tokens issued that far in the future")
	}
	if !c.Security.RotateRefreshTokens {
		add("refresh_rotation_disabled", "a stolen refresh token stays usable until it expires")
	}
	if !c.MFA.RequireEnrollmentConfirmation {
		add("mfa_enrollment_unconfirmed", "MFA is enabled before the principal proves possession of the secret")
	}
	if !c.Security.EnableSignInThrottle {
		add("signin_throttle_disabled", "failed sign-ins are not throttled")
	}
	if !c.Cookie.Secure {
		add("cookie_insecure", "refresh cookie is sent over plain HTTP")
	}
	return ws
}
