package tenantauth

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/tenantauth/cache"
	"github.com/MrEthical07/tenantauth/internal/audit"
	"github.com/MrEthical07/tenantauth/internal/flows"
	"github.com/MrEthical07/tenantauth/internal/metrics"
	"github.com/MrEthical07/tenantauth/internal/rate"
	"github.com/MrEthical07/tenantauth/internal/stores"
	"github.com/MrEthical07/tenantauth/jwt"
	"github.com/MrEthical07/tenantauth/mfa"
	"github.com/MrEthical07/tenantauth/password"
)

// Builder defines a public type used by tenantauth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	cache  cache.Cache

	store     PrincipalStore
	mailer    Mailer
	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New describes the new operation and its observable behavior.
//
// New starts from DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig copies cfg, including key material.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the shared Redis client. It backs the cache, unless WithCache
// overrides it, and the sign-in, MFA and forgot-password throttles.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCache sets the cache used for revocation, single-use entries and the
// read-through caches. c must not evict entries before their TTL. Without
// WithCache or WithRedis, Build keeps revocation and single-use keys in a
// cache.Local and the read-through caches in a cache.LRU, which is only
// correct for a single instance.
func (b *Builder) WithCache(c cache.Cache) *Builder {
	b.cache = c
	return b
}

// WithStore describes the withstore operation and its observable behavior.
func (b *Builder) WithStore(store PrincipalStore) *Builder {
	b.store = store
	return b
}

// WithMailer describes the withmailer operation and its observable behavior.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// The sink only receives events when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for best-effort failures. Nil means slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, wires every component and returns the
// Engine. A Builder can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, invalidConfig("principal store required")
	}
	if b.mailer == nil {
		return nil, invalidConfig("mailer required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- CACHE --------
	// durable holds revocation and single-use keys and must not evict before
	// TTL. readThrough holds the authorization and member caches.
	var durable, readThrough cache.Cache
	switch {
	case b.cache != nil:
		durable, readThrough = b.cache, b.cache
	case b.redis != nil:
		r := cache.NewRedis(b.redis, cfg.Cache.OperationTimeout)
		durable, readThrough = r, r
	default:
		lru, err := cache.NewLRU(cfg.Cache.LocalSize)
		if err != nil {
			return nil, ErrInvalidConfig.Wrap(err)
		}
		durable = cache.NewLocal().WithClock(now)
		readThrough = lru.WithClock(now)
		logger.Warn("tenantauth: no redis client configured, using in-process cache")
	}

	// -------- TOKEN CODEC --------
	tokens, err := jwt.NewManager(jwt.Config{
		Access:        cfg.JWT.Access,
		Refresh:       cfg.JWT.Refresh,
		MFAChallenge:  cfg.JWT.MFAChallenge,
		PasswordReset: cfg.JWT.PasswordReset,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		Now:           now,
	})
	if err != nil {
		return nil, ErrInvalidConfig.Wrap(err)
	}

	// -------- PASSWORDS --------
	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, ErrInvalidConfig.Wrap(err)
	}
	policy := password.DefaultPolicy()
	policy.MinLength = cfg.PasswordPolicy.MinLength
	policy.SimilarityThreshold = cfg.PasswordPolicy.SimilarityThreshold
	policy.RequireUpper = cfg.PasswordPolicy.RequireUpper
	policy.RequireLower = cfg.PasswordPolicy.RequireLower
	policy.RequireDigit = cfg.PasswordPolicy.RequireDigit
	policy.RequireSpecial = cfg.PasswordPolicy.RequireSpecial

	// -------- THROTTLES --------
	var limiter flows.Limiter
	if b.redis != nil {
		rc := rate.Config{
			MFAVerify:      rate.Window{Max: cfg.MFA.MaxVerifyAttempts, Cooldown: cfg.MFA.VerifyCooldown},
			ForgotPassword: rate.Window{Max: cfg.Security.MaxForgotPasswordRequests, Cooldown: cfg.Security.ForgotPasswordCooldown},
			Timeout:        cfg.Cache.OperationTimeout,
		}
		if cfg.Security.EnableSignInThrottle {
			rc.SignIn = rate.Window{Max: cfg.Security.MaxSignInAttempts, Cooldown: cfg.Security.SignInCooldown}
		}
		limiter = rate.New(b.redis, rc)
	}

	linkTemplate := cfg.PasswordReset.LinkTemplate
	deps := flows.Deps{
		Tokens:      tokens,
		Revocations: stores.NewRevocationStore(durable, now),
		Challenges:  stores.NewMFAChallengeStore(durable),
		Resets:      stores.NewPasswordResetStore(durable, now),
		Authz:       stores.NewAuthorizationCache(readThrough, now),
		Members:     stores.NewMemberCache(readThrough, cfg.Cache.MemberTTL),
		Store:       flows.NewStore(b.store, cfg.Store.OperationTimeout),
		OTP:         mfa.New(mfa.Config{Issuer: cfg.MFA.Issuer, QRCodeSize: cfg.MFA.QRCodeSize, Now: now}),
		Hasher:      hasher,
		Policy:      policy,
		Limiter:     limiter,
		Mailer:      b.mailer,
		Logger:      logger,
		Now:         now,
		ResetLink: func(token string) string {
			return strings.ReplaceAll(linkTemplate, ResetTokenPlaceholder, token)
		},
		ResetSubject:                  cfg.PasswordReset.Subject,
		RotateRefresh:                 cfg.Security.RotateRefreshTokens,
		RequireEnrollmentConfirmation: cfg.MFA.RequireEnrollmentConfirmation,
		ActivateOnSignUp:              cfg.Security.ActivateOnSignUp,
	}

	engine := &Engine{
		config:  cfg,
		deps:    deps,
		now:     now,
		audit:   audit.NewDispatcher(audit.Config(cfg.Audit), b.auditSink),
		metrics: metrics.New(metrics.Config(cfg.Metrics)),
	}

	b.built = true

	return engine, nil
}
