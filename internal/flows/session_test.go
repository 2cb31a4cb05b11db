package flows

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/tenantauth/internal/autherr"
	"github.com/MrEthical07/tenantauth/internal/domain"
)

func TestSignInIssuesTokensWithoutMFA(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})

	res := h.signIn("alice")
	if res.MFARequired || res.MFAToken != "" {
		t.Fatalf("unexpected mfa challenge %+v", res)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected access and refresh tokens")
	}
	if res.PrincipalUUID != p.UUID {
		t.Fatalf("expected principal %s, got %s", p.UUID, res.PrincipalUUID)
	}

	raw, err := h.mr.Get("member:" + p.UUID)
	if err != nil {
		t.Fatalf("member cache not primed: %v", err)
	}
	if strings.Contains(raw, "argon2id") {
		t.Fatal("member cache must not hold the password hash")
	}
}

func TestSignInFailures(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	h.addPrincipal(domain.Principal{Username: "idle", IsActive: false})
	gone := h.addPrincipal(domain.Principal{Username: "gone", IsActive: true})
	if err := h.store.SoftDelete(gone.UUID, time.Now()); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
		want     autherr.Kind
	}{
		{"unknown user", "nobody", goodPassword, autherr.KindInvalidCredentials},
		{"wrong password", "alice", "Wrong#Horse9", autherr.KindInvalidCredentials},
		{"soft deleted", "gone", goodPassword, autherr.KindInvalidCredentials},
		{"inactive", "idle", goodPassword, autherr.KindInactiveUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := RunSignIn(ctx, h.deps, tc.username, tc.password)
			requireKind(t, err, tc.want)
		})
	}
}

func TestSignInThrottleAfterRepeatedFailures(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := RunSignIn(ctx, h.deps, "alice", "Wrong#Horse9")
		requireKind(t, err, autherr.KindInvalidCredentials)
	}
	_, err := RunSignIn(ctx, h.deps, "alice", goodPassword)
	requireKind(t, err, autherr.KindRateLimited)

	h.advance(time.Minute + time.Second)
	if _, err := RunSignIn(ctx, h.deps, "alice", goodPassword); err != nil {
		t.Fatalf("expected sign in after cooldown, got %v", err)
	}
}

func TestMFAChallengeIsSingleUse(t *testing.T) {
	h := newHarness(t)
	secret, _ := h.deps.OTP.GenerateSecret()
	h.addPrincipal(domain.Principal{Username: "bob", IsActive: true, MFAEnabled: true, MFASecret: secret})
	ctx := context.Background()

	res := h.signIn("bob")
	if !res.MFARequired || res.MFAToken == "" {
		t.Fatalf("expected mfa challenge, got %+v", res)
	}
	if res.AccessToken != "" || res.RefreshToken != "" {
		t.Fatal("session tokens must not be issued before mfa")
	}
	if ttl := h.mr.TTL("mfa_temp_token-bob"); ttl != 3*time.Minute {
		t.Fatalf("expected 3m challenge ttl, got %v", ttl)
	}

	verified, err := RunVerifyMFA(ctx, h.deps, "bob", res.MFAToken, h.code(secret))
	if err != nil {
		t.Fatalf("verify mfa: %v", err)
	}
	if verified.AccessToken == "" || verified.RefreshToken == "" {
		t.Fatal("expected session tokens after mfa")
	}
	if _, err := h.deps.Tokens.DecodeAccess(verified.AccessToken); err != nil {
		t.Fatalf("issued access token does not decode: %v", err)
	}

	_, err = RunVerifyMFA(ctx, h.deps, "bob", res.MFAToken, h.code(secret))
	requireKind(t, err, autherr.KindInvalidMFAToken)
}

func TestVerifyMFARejections(t *testing.T) {
	h := newHarness(t)
	secret, _ := h.deps.OTP.GenerateSecret()
	h.addPrincipal(domain.Principal{Username: "bob", IsActive: true, MFAEnabled: true, MFASecret: secret})
	h.addPrincipal(domain.Principal{Username: "carol", IsActive: true, MFAEnabled: true, MFASecret: secret})
	ctx := context.Background()

	bob := h.signIn("bob")
	carol := h.signIn("carol")

	_, err := RunVerifyMFA(ctx, h.deps, "bob", bob.MFAToken, wrongCode(h.code(secret)))
	requireKind(t, err, autherr.KindInvalidMFACode)

	_, err = RunVerifyMFA(ctx, h.deps, "bob", carol.MFAToken, h.code(secret))
	requireKind(t, err, autherr.KindInvalidMFAToken)

	_, err = RunVerifyMFA(ctx, h.deps, "nobody", bob.MFAToken, h.code(secret))
	requireKind(t, err, autherr.KindInvalidMFAToken)

	// A wrong code leaves the challenge usable.
	if _, err := RunVerifyMFA(ctx, h.deps, "bob", bob.MFAToken, h.code(secret)); err != nil {
		t.Fatalf("expected challenge to survive a wrong code, got %v", err)
	}

	h.advance(3*time.Minute + time.Second)
	_, err = RunVerifyMFA(ctx, h.deps, "carol", carol.MFAToken, h.code(secret))
	requireKind(t, err, autherr.KindInvalidMFAToken)
}

func TestSignOutThenRefreshFailsSessionExpired(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	ctx := context.Background()
	res := h.signIn("alice")

	out, err := RunSignOut(ctx, h.deps, res.AccessToken, res.RefreshToken)
	if err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if !out.AccessRevoked || !out.RefreshRevoked {
		t.Fatalf("expected both tokens revoked, got %+v", out)
	}
	if ttl := h.mr.TTL(res.RefreshToken); ttl != 24*time.Hour {
		t.Fatalf("expected refresh blacklist ttl 24h, got %v", ttl)
	}
	if ttl := h.mr.TTL(res.AccessToken); ttl != 15*time.Minute {
		t.Fatalf("expected access blacklist ttl 15m, got %v", ttl)
	}

	_, err = RunRefresh(ctx, h.deps, res.RefreshToken)
	requireKind(t, err, autherr.KindSessionExpired)
}

func TestSignOutTwiceFailsAlreadySignedOut(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	ctx := context.Background()
	res := h.signIn("alice")

	if _, err := RunSignOut(ctx, h.deps, res.AccessToken, res.RefreshToken); err != nil {
		t.Fatalf("first sign out: %v", err)
	}
	_, err := RunSignOut(ctx, h.deps, res.AccessToken, res.RefreshToken)
	requireKind(t, err, autherr.KindAlreadySignedOut)
}

func TestSignOutInputErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := RunSignOut(ctx, h.deps, "whatever", "")
	requireKind(t, err, autherr.KindRefreshTokenMissing)

	_, err = RunSignOut(ctx, h.deps, "garbage", "garbage")
	requireKind(t, err, autherr.KindAlreadySignedOut)
}

func TestSignOutWithOnlyRefreshToken(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	res := h.signIn("alice")

	out, err := RunSignOut(context.Background(), h.deps, "", res.RefreshToken)
	if err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if out.AccessRevoked || !out.RefreshRevoked {
		t.Fatalf("unexpected result %+v", out)
	}
}

func TestSignOutIgnoresMemberCacheFailure(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	res := h.signIn("alice")

	h.deps.Members = failingMemberCache{}
	if _, err := RunSignOut(context.Background(), h.deps, res.AccessToken, res.RefreshToken); err != nil {
		t.Fatalf("cache invalidation failure must not fail sign out: %v", err)
	}
}

func TestRefreshIssuesAccessOnly(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	ctx := context.Background()
	res := h.signIn("alice")

	h.advance(time.Second)
	out, err := RunRefresh(ctx, h.deps, res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if out.AccessToken == "" || out.AccessToken == res.AccessToken {
		t.Fatal("expected a new access token")
	}
	if out.RefreshToken != "" {
		t.Fatal("refresh token must not rotate by default")
	}
	claims, err := h.deps.Tokens.DecodeAccess(out.AccessToken)
	if err != nil || claims.Subject != p.UUID {
		t.Fatalf("unexpected access claims %+v %v", claims, err)
	}

	if _, err := RunRefresh(ctx, h.deps, res.RefreshToken); err != nil {
		t.Fatalf("unrotated refresh token must stay usable: %v", err)
	}
}

func TestRefreshRotationRevokesOldToken(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	h.deps.RotateRefresh = true
	ctx := context.Background()
	res := h.signIn("alice")

	out, err := RunRefresh(ctx, h.deps, res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if out.RefreshToken == "" || out.RefreshToken == res.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}
	_, err = RunRefresh(ctx, h.deps, res.RefreshToken)
	requireKind(t, err, autherr.KindSessionExpired)

	if _, err := RunRefresh(ctx, h.deps, out.RefreshToken); err != nil {
		t.Fatalf("rotated refresh token must work: %v", err)
	}
}

func TestRefreshRejectsMissingAndForeignTokens(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	ctx := context.Background()
	res := h.signIn("alice")

	_, err := RunRefresh(ctx, h.deps, "")
	requireKind(t, err, autherr.KindRefreshTokenMissing)

	_, err = RunRefresh(ctx, h.deps, res.AccessToken)
	requireKind(t, err, autherr.KindInvalidToken)

	h.advance(24*time.Hour + time.Second)
	_, err = RunRefresh(ctx, h.deps, res.RefreshToken)
	requireKind(t, err, autherr.KindInvalidToken)
}

func TestCacheOutageSurfacesAsUnavailable(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	res := h.signIn("alice")

	h.mr.Close()
	_, err := RunRefresh(context.Background(), h.deps, res.RefreshToken)
	requireKind(t, err, autherr.KindUnavailable)
	if !errors.Is(err, autherr.ErrUnavailable) {
		t.Fatal("expected errors.Is match on kind")
	}
}
