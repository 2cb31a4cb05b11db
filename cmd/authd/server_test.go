package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/http/cookiejar"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/tenantauth"
	promexport "github.com/MrEthical07/tenantauth/metrics/export/prometheus"
	"github.com/MrEthical07/tenantauth/password"
	"github.com/MrEthical07/tenantauth/store/memory"
)

const testPassword = "Correct#Horse9"

type outbox struct {
	mu     sync.Mutex
	bodies []string
}

func (o *outbox) Send(_ context.Context, _, _, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bodies = append(o.bodies, body)
	return nil
}

func (o *outbox) last() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.bodies) == 0 {
		return ""
	}
	return o.bodies[len(o.bodies)-1]
}

type testServer struct {
	*httptest.Server
	client *http.Client
	store  *memory.Store
	mail   *outbox
}

func testEngineConfig() tenantauth.Config {
	cfg := tenantauth.DefaultConfig()
	cfg.JWT.Access.PrivateKey = []byte("access-" + strings.Repeat("a", 40))
	cfg.JWT.Refresh.PrivateKey = []byte("refresh-" + strings.Repeat("r", 40))
	cfg.JWT.MFAChallenge.PrivateKey = []byte("mfa-" + strings.Repeat("m", 40))
	cfg.JWT.PasswordReset.PrivateKey = []byte("reset-" + strings.Repeat("p", 40))
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.PasswordReset.LinkTemplate = "https://app.example/reset?token={token}"
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestServer(t *testing.T, limiter *ipLimiter) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := memory.New()
	box := &outbox{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine, err := tenantauth.New().
		WithConfig(testEngineConfig()).
		WithRedis(rdb).
		WithStore(store).
		WithMailer(box).
		WithLogger(logger).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	srv := httptest.NewServer(newRouter(routerOptions{
		Engine:       engine,
		Logger:       logger,
		Metrics:      newHTTPMetrics(promexport.NewExporter(engine)),
		Limiter:      limiter,
		MaxBodyBytes: 1 << 16,
	}))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testServer{Server: srv, client: &http.Client{Jar: jar}, store: store, mail: box}
}

func (s *testServer) addMember(t *testing.T, username, role string) tenantauth.Principal {
	t.Helper()
	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)

	p, err := s.store.Put(tenantauth.Principal{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         tenantauth.RoleMember,
		IsActive:     true,
		Memberships: []tenantauth.ServiceMembership{
			{ServiceID: "svc1", ServiceName: "Service One", Role: role, MemberActive: true, ServiceActive: true},
		},
	})
	require.NoError(t, err)
	return p
}

type response struct {
	Status int
	Data   map[string]any
	Error  *errorBody
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env struct {
		Data  map[string]any `json:"data"`
		Error *errorBody     `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return response{Status: resp.StatusCode, Data: env.Data, Error: env.Error}
}

func (s *testServer) signIn(t *testing.T, username string) string {
	t.Helper()
	res := s.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{"username": username, "password": testPassword})
	require.Equal(t, http.StatusOK, res.Status, "sign-in error: %+v", res.Error)
	token, _ := res.Data["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	s.addMember(t, "alice", "editor")

	access := s.signIn(t, "alice")

	res := s.do(t, http.MethodGet, "/auth/verify/svc1", access, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "editor", res.Data["role"])
	assert.Equal(t, "alice", res.Data["username"])

	res = s.do(t, http.MethodGet, "/auth/verify/svc1?roles=admin", access, nil)
	require.Equal(t, http.StatusForbidden, res.Status)
	assert.Equal(t, "insufficient_permissions", res.Error.Code)

	res = s.do(t, http.MethodGet, "/auth/verify/other", access, nil)
	require.Equal(t, http.StatusForbidden, res.Status)
	assert.Equal(t, "not_registered_on_service", res.Error.Code)

	res = s.do(t, http.MethodGet, "/member/me", access, nil)
	require.Equal(t, http.StatusOK, res.Status)
	member, _ := res.Data["member"].(map[string]any)
	assert.Equal(t, "alice", member["username"])
	assert.NotContains(t, member, "password_hash")

	res = s.do(t, http.MethodPost, "/auth/refresh", "", nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.NotEmpty(t, res.Data["access_token"])

	res = s.do(t, http.MethodDelete, "/auth/sign-out", access, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, true, res.Data["signed_out"])

	res = s.do(t, http.MethodGet, "/auth/verify/svc1", access, nil)
	require.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, "token_revoked", res.Error.Code)

	// The cleared cookie means the next sign-out has no refresh token.
	res = s.do(t, http.MethodDelete, "/auth/sign-out", access, nil)
	require.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, "refresh_token_missing", res.Error.Code)
}

func TestSignInErrors(t *testing.T) {
	s := newTestServer(t, nil)
	s.addMember(t, "bob", "viewer")

	res := s.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{"username": "bob", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, "invalid_credentials", res.Error.Code)
	assert.Nil(t, res.Data)

	res = s.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{"username": "bob"})
	require.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "bad_request", res.Error.Code)

	res = s.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{"username": "bob", "password": "x", "extra": "y"})
	require.Equal(t, http.StatusBadRequest, res.Status)
}

func TestForgotAndResetPassword(t *testing.T) {
	s := newTestServer(t, nil)
	s.addMember(t, "carol", "viewer")

	res := s.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusAccepted, res.Status)
	assert.Empty(t, s.mail.last())

	res = s.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "carol@example.com"})
	require.Equal(t, http.StatusAccepted, res.Status)

	match := regexp.MustCompile(`token=([A-Za-z0-9._-]+)`).FindStringSubmatch(s.mail.last())
	require.Len(t, match, 2, "reset link not found in %q", s.mail.last())

	newPassword := "Fresh$Garden42"
	body := map[string]string{"token": match[1], "new_password": newPassword, "confirm_password": newPassword}
	res = s.do(t, http.MethodPost, "/auth/reset-password", "", body)
	require.Equal(t, http.StatusOK, res.Status, "reset error: %+v", res.Error)

	res = s.do(t, http.MethodPost, "/auth/reset-password", "", body)
	require.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, "invalid_token", res.Error.Code)

	res = s.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{"username": "carol", "password": newPassword})
	require.Equal(t, http.StatusOK, res.Status)
}

func TestChangePasswordPolicyViolation(t *testing.T) {
	s := newTestServer(t, nil)
	s.addMember(t, "dave", "viewer")
	access := s.signIn(t, "dave")

	res := s.do(t, http.MethodPut, "/member/password", access, map[string]string{
		"current_password": testPassword,
		"new_password":     "short",
		"confirm_password": "short",
	})
	require.Equal(t, http.StatusUnprocessableEntity, res.Status)
	assert.Equal(t, "password_policy_violation", res.Error.Code)
	assert.NotEmpty(t, res.Error.Details)
}

func TestMFAQRCodeRequiresEnrollment(t *testing.T) {
	s := newTestServer(t, nil)
	s.addMember(t, "erin", "viewer")
	access := s.signIn(t, "erin")

	res := s.do(t, http.MethodGet, "/member/mfa/qrcode", access, nil)
	require.Equal(t, http.StatusConflict, res.Status)
	assert.Equal(t, "mfa_not_enabled", res.Error.Code)

	res = s.do(t, http.MethodPut, "/member/mfa", access, map[string]any{"enable": true})
	require.Equal(t, http.StatusOK, res.Status, "update mfa error: %+v", res.Error)
	assert.Equal(t, true, res.Data["enabled"])
	assert.NotEmpty(t, res.Data["qr_code"])
}

func TestRateLimitPerIP(t *testing.T) {
	limiter, err := newIPLimiter(1, 2, 16)
	require.NoError(t, err)
	s := newTestServer(t, limiter)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		res := s.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{"username": "x", "password": "y"})
		statuses = append(statuses, res.Status)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, statuses)

	res := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.Status, "health checks are not rate limited")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.addMember(t, "frank", "viewer")
	s.signIn(t, "frank")

	resp, err := s.client.Get(s.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(raw)
	assert.Contains(t, out, "tenantauth_sign_in_success_total 1")
	assert.Contains(t, out, `http_requests_total{method="POST",route="/auth/sign-in",status="200"} 1`)
}

func TestKindStatusCoversEveryKind(t *testing.T) {
	kinds := []tenantauth.Kind{
		tenantauth.KindInvalidCredentials, tenantauth.KindInactiveUser, tenantauth.KindInvalidToken,
		tenantauth.KindTokenRevoked, tenantauth.KindAlreadySignedOut, tenantauth.KindRefreshTokenMissing,
		tenantauth.KindSessionExpired, tenantauth.KindInsufficientPermissions, tenantauth.KindNotRegisteredOnService,
		tenantauth.KindServiceInactiveUser, tenantauth.KindInvalidMFAToken, tenantauth.KindInvalidMFACode,
		tenantauth.KindPasswordPolicyViolation, tenantauth.KindMFAAlreadyEnabled, tenantauth.KindMFANotEnabled,
		tenantauth.KindInvalidCurrentPassword, tenantauth.KindPasswordReused, tenantauth.KindInvalidProfile,
		tenantauth.KindRateLimited,
		tenantauth.KindNotFound, tenantauth.KindConflict, tenantauth.KindUnavailable, tenantauth.KindInvalidConfig,
	}
	for _, k := range kinds {
		_, ok := kindStatus[k]
		assert.True(t, ok, "no status for %s", k)
	}
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.EOF))
}

func TestSignOutIsDelete(t *testing.T) {
	s := newTestServer(t, nil)
	req, err := http.NewRequest(http.MethodPost, s.URL+"/auth/sign-out", nil)
	require.NoError(t, err)
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSignUp(t *testing.T) {
	s := newTestServer(t, nil)
	s.addMember(t, "alice", "editor")

	res := s.do(t, http.MethodPost, "/auth/sign-up", "", map[string]any{
		"username":         "carol",
		"email":            "carol@example.com",
		"password":         testPassword,
		"confirm_password": testPassword,
		"mfa_enabled":      true,
	})
	require.Equal(t, http.StatusCreated, res.Status, "sign-up error: %+v", res.Error)
	assert.NotEmpty(t, res.Data["qr_code"])
	assert.Equal(t, false, res.Data["mfa_pending"])
	member, _ := res.Data["member"].(map[string]any)
	assert.Equal(t, "carol", member["username"])
	assert.NotContains(t, member, "mfa_secret")

	// Self-registered principals wait for activation by default.
	res = s.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{"username": "carol", "password": testPassword})
	require.Equal(t, http.StatusForbidden, res.Status)
	assert.Equal(t, "inactive_user", res.Error.Code)

	res = s.do(t, http.MethodPost, "/auth/sign-up", "", map[string]any{
		"username": "alice", "email": "other@example.com", "password": testPassword, "confirm_password": testPassword,
	})
	require.Equal(t, http.StatusConflict, res.Status)
	assert.Equal(t, "conflict", res.Error.Code)

	res = s.do(t, http.MethodPost, "/auth/sign-up", "", map[string]any{
		"username": "two words", "email": "x@example.com", "password": testPassword, "confirm_password": testPassword,
	})
	require.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "invalid_profile", res.Error.Code)
	assert.NotEmpty(t, res.Error.Details)
}

func TestUpdateProfile(t *testing.T) {
	s := newTestServer(t, nil)
	s.addMember(t, "alice", "editor")
	s.addMember(t, "bobby", "viewer")
	access := s.signIn(t, "alice")

	res := s.do(t, http.MethodPut, "/member", access, map[string]string{"email": "alice@new.example.com"})
	require.Equal(t, http.StatusOK, res.Status, "update error: %+v", res.Error)
	fresh, _ := res.Data["access_token"].(string)
	require.NotEmpty(t, fresh)
	member, _ := res.Data["member"].(map[string]any)
	assert.Equal(t, "alice@new.example.com", member["email"])

	res = s.do(t, http.MethodGet, "/member/me", access, nil)
	require.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, "token_revoked", res.Error.Code)

	res = s.do(t, http.MethodGet, "/member/me", fresh, nil)
	require.Equal(t, http.StatusOK, res.Status)

	res = s.do(t, http.MethodPost, "/auth/refresh", "", nil)
	require.Equal(t, http.StatusOK, res.Status, "rotated refresh cookie must work: %+v", res.Error)

	res = s.do(t, http.MethodPut, "/member", fresh, map[string]string{"username": "bobby"})
	require.Equal(t, http.StatusConflict, res.Status)
}
