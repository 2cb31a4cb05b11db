package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/tenantauth/cache"
	"github.com/MrEthical07/tenantauth/internal/autherr"
	"github.com/MrEthical07/tenantauth/internal/domain"
	"github.com/MrEthical07/tenantauth/internal/rate"
	"github.com/MrEthical07/tenantauth/internal/stores"
	"github.com/MrEthical07/tenantauth/jwt"
	"github.com/MrEthical07/tenantauth/mfa"
	"github.com/MrEthical07/tenantauth/password"
	"github.com/MrEthical07/tenantauth/store/memory"
)

const goodPassword = "Correct#Horse9"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

type captureMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *captureMailer) Send(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type harness struct {
	t         *testing.T
	mr        *miniredis.Miniredis
	clock     *testClock
	store     *memory.Store
	mailer    *captureMailer
	hasher    *password.Argon2
	resetLink string
	deps      Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &testClock{t: time.Now().Truncate(time.Second)}
	secret := func(prefix string) []byte { return []byte(prefix + strings.Repeat("k", 40)) }
	tokens, err := jwt.NewManager(jwt.Config{
		Access:        jwt.KeyConfig{SigningMethod: jwt.MethodHS256, PrivateKey: secret("access"), TTL: 15 * time.Minute},
		Refresh:       jwt.KeyConfig{SigningMethod: jwt.MethodHS256, PrivateKey: secret("refresh"), TTL: 24 * time.Hour},
		MFAChallenge:  jwt.KeyConfig{SigningMethod: jwt.MethodHS256, PrivateKey: secret("mfa"), TTL: 3 * time.Minute},
		PasswordReset: jwt.KeyConfig{SigningMethod: jwt.MethodHS256, PrivateKey: secret("reset"), TTL: 15 * time.Minute},
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	hasher, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	c := cache.NewRedis(client, time.Second)
	h := &harness{
		t:      t,
		mr:     mr,
		clock:  clock,
		store:  memory.New(),
		mailer: &captureMailer{},
		hasher: hasher,
	}
	h.deps = Deps{
		Tokens:      tokens,
		Revocations: stores.NewRevocationStore(c, clock.Now),
		Challenges:  stores.NewMFAChallengeStore(c),
		Resets:      stores.NewPasswordResetStore(c, clock.Now),
		Authz:       stores.NewAuthorizationCache(c, clock.Now),
		Members:     stores.NewMemberCache(c, time.Hour),
		Store:       NewStore(h.store, time.Second),
		OTP:         mfa.New(mfa.Config{Now: clock.Now}),
		Hasher:      hasher,
		Policy:      password.DefaultPolicy(),
		Limiter: rate.New(client, rate.Config{
			SignIn:         rate.Window{Max: 3, Cooldown: time.Minute},
			MFAVerify:      rate.Window{Max: 3, Cooldown: time.Minute},
			ForgotPassword: rate.Window{Max: 2, Cooldown: time.Minute},
		}),
		Mailer: h.mailer,
		Now:    clock.Now,
		ResetLink: func(token string) string {
			h.resetLink = token
			return "https://app.example/reset?token=" + token
		},
		ResetSubject: "Reset your password",
	}
	return h
}

// advance moves both the token clock and the cache clock.
func (h *harness) advance(d time.Duration) {
	h.clock.mu.Lock()
	h.clock.t = h.clock.t.Add(d)
	h.clock.mu.Unlock()
	h.mr.FastForward(d)
}

func (h *harness) addPrincipal(p domain.Principal) domain.Principal {
	h.t.Helper()
	if p.PasswordHash == "" {
		hash, err := h.hasher.Hash(goodPassword)
		if err != nil {
			h.t.Fatalf("hash: %v", err)
		}
		p.PasswordHash = hash
	}
	if p.Email == "" {
		p.Email = p.Username + "@example.com"
	}
	if p.Role == "" {
		p.Role = domain.RoleMember
	}
	stored, err := h.store.Put(p)
	if err != nil {
		h.t.Fatalf("put principal: %v", err)
	}
	return stored
}

func (h *harness) code(secret string) string {
	h.t.Helper()
	code, err := totp.GenerateCodeCustom(secret, h.clock.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		h.t.Fatalf("generate code: %v", err)
	}
	return code
}

func (h *harness) signIn(username string) *SignInResult {
	h.t.Helper()
	res, err := RunSignIn(context.Background(), h.deps, username, goodPassword)
	if err != nil {
		h.t.Fatalf("sign in %s: %v", username, err)
	}
	return res
}

func wrongCode(code string) string {
	b := []byte(code)
	b[0] = '0' + (b[0]-'0'+5)%10
	return string(b)
}

func requireKind(t *testing.T, err error, want autherr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want)
	}
	if got := autherr.KindOf(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}

type failingMemberCache struct{}

func (failingMemberCache) Get(context.Context, string) (*domain.Principal, error) {
	return nil, stores.ErrCacheUnavailable
}

func (failingMemberCache) Put(context.Context, *domain.Principal) error {
	return stores.ErrCacheUnavailable
}

func (failingMemberCache) Invalidate(context.Context, string) error {
	return errors.Join(stores.ErrCacheUnavailable, errors.New("connection reset"))
}
