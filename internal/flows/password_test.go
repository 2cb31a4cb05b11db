package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/tenantauth/internal/autherr"
	"github.com/MrEthical07/tenantauth/internal/domain"
)

const newPassword = "Fresh!Meadow42"

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "idle", IsActive: false})

	for _, email := range []string{"nobody@example.com", "idle@example.com"} {
		res, err := RunForgotPassword(context.Background(), h.deps, email)
		if err != nil {
			t.Fatalf("%s: expected silent success, got %v", email, err)
		}
		if res.Sent {
			t.Fatalf("%s: nothing should be sent", email)
		}
	}
	if h.mailer.count() != 0 {
		t.Fatal("no mail expected for unknown or inactive addresses")
	}
}

func TestForgotPasswordMailFailureIsHard(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	h.mailer.err = errors.New("smtp: 451 try later")

	_, err := RunForgotPassword(context.Background(), h.deps, "alice@example.com")
	requireKind(t, err, autherr.KindUnavailable)
}

func TestForgotPasswordThrottle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := RunForgotPassword(ctx, h.deps, "nobody@example.com"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	_, err := RunForgotPassword(ctx, h.deps, "nobody@example.com")
	requireKind(t, err, autherr.KindRateLimited)
}

func TestResetPasswordIsSingleUse(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	ctx := context.Background()

	res, err := RunForgotPassword(ctx, h.deps, "alice@example.com")
	if err != nil || !res.Sent {
		t.Fatalf("forgot password: %+v %v", res, err)
	}
	token := h.resetLink
	if ttl := h.mr.TTL("password_reset:" + token); ttl != 15*time.Minute {
		t.Fatalf("expected value ttl 15m, got %v", ttl)
	}
	if ttl := h.mr.TTL("password_reset_used:alice@example.com"); ttl != 15*time.Minute {
		t.Fatalf("expected marker ttl 15m, got %v", ttl)
	}

	uuid, err := RunResetPassword(ctx, h.deps, token, newPassword, newPassword)
	if err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if uuid != p.UUID {
		t.Fatalf("expected %s, got %s", p.UUID, uuid)
	}
	if _, err := RunSignIn(ctx, h.deps, "alice", newPassword); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}

	// The signature is still valid for minutes; the cache says no.
	_, err = RunResetPassword(ctx, h.deps, token, "Another!Pass77", "Another!Pass77")
	requireKind(t, err, autherr.KindInvalidToken)
}

func TestResetPasswordPolicyViolationKeepsToken(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	ctx := context.Background()
	if _, err := RunForgotPassword(ctx, h.deps, "alice@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}

	_, err := RunResetPassword(ctx, h.deps, h.resetLink, "short", "short")
	requireKind(t, err, autherr.KindPasswordPolicyViolation)
	var aerr *autherr.Error
	if !errors.As(err, &aerr) || len(aerr.Details) == 0 {
		t.Fatalf("expected policy details, got %v", err)
	}

	_, err = RunResetPassword(ctx, h.deps, h.resetLink, newPassword, "mismatch")
	requireKind(t, err, autherr.KindPasswordPolicyViolation)

	if _, err := RunResetPassword(ctx, h.deps, h.resetLink, newPassword, newPassword); err != nil {
		t.Fatalf("token must remain usable after a policy failure: %v", err)
	}
}

func TestResetPasswordRejectsForeignAndExpiredTokens(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	ctx := context.Background()

	// Validly signed but never registered in the cache.
	unregistered, _, err := h.deps.Tokens.IssuePasswordReset(p.UUID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = RunResetPassword(ctx, h.deps, unregistered, newPassword, newPassword)
	requireKind(t, err, autherr.KindInvalidToken)

	_, err = RunResetPassword(ctx, h.deps, "garbage", newPassword, newPassword)
	requireKind(t, err, autherr.KindInvalidToken)

	if _, err := RunForgotPassword(ctx, h.deps, "alice@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	h.advance(15*time.Minute + time.Second)
	_, err = RunResetPassword(ctx, h.deps, h.resetLink, newPassword, newPassword)
	requireKind(t, err, autherr.KindInvalidToken)
}

func TestResetPasswordUsedMarkerBlocksOlderToken(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	ctx := context.Background()

	if _, err := RunForgotPassword(ctx, h.deps, "alice@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	first := h.resetLink
	h.advance(time.Second)
	if _, err := RunForgotPassword(ctx, h.deps, "alice@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	second := h.resetLink

	if _, err := RunResetPassword(ctx, h.deps, second, newPassword, newPassword); err != nil {
		t.Fatalf("reset: %v", err)
	}
	_, err := RunResetPassword(ctx, h.deps, first, "Another!Pass77", "Another!Pass77")
	requireKind(t, err, autherr.KindInvalidToken)
}

func TestResetPasswordNewRequestDoesNotReviveOlderToken(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	ctx := context.Background()

	if _, err := RunForgotPassword(ctx, h.deps, "alice@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	older := h.resetLink
	h.advance(time.Second)
	if _, err := RunForgotPassword(ctx, h.deps, "alice@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	if _, err := RunResetPassword(ctx, h.deps, h.resetLink, newPassword, newPassword); err != nil {
		t.Fatalf("reset: %v", err)
	}

	// Past the forgot-password window so the third request is not throttled.
	h.advance(time.Minute + time.Second)
	if _, err := RunForgotPassword(ctx, h.deps, "alice@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	latest := h.resetLink

	_, err := RunResetPassword(ctx, h.deps, older, "Another!Pass77", "Another!Pass77")
	requireKind(t, err, autherr.KindInvalidToken)
	if _, err := RunResetPassword(ctx, h.deps, latest, "Another!Pass77", "Another!Pass77"); err != nil {
		t.Fatalf("link issued after the reset must work: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{
		Username:    "alice",
		IsActive:    true,
		Memberships: []domain.ServiceMembership{membership("svc1", "admin", true, true)},
	})
	ctx := context.Background()
	session := h.signIn("alice")

	_, err := RunChangePassword(ctx, h.deps, session.AccessToken, session.RefreshToken, "Wrong#Horse9", newPassword, newPassword)
	requireKind(t, err, autherr.KindInvalidCurrentPassword)

	_, err = RunChangePassword(ctx, h.deps, session.AccessToken, session.RefreshToken, goodPassword, goodPassword, goodPassword)
	requireKind(t, err, autherr.KindPasswordReused)

	_, err = RunChangePassword(ctx, h.deps, session.AccessToken, session.RefreshToken, goodPassword, "X4l1c3Pass!", "X4l1c3Pass!")
	requireKind(t, err, autherr.KindPasswordPolicyViolation)

	res, err := RunChangePassword(ctx, h.deps, session.AccessToken, session.RefreshToken, goodPassword, newPassword, newPassword)
	if err != nil {
		t.Fatalf("change password: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" || res.Principal.PasswordHash != "" {
		t.Fatalf("unexpected result %+v", res)
	}

	_, err = RunAuthorize(ctx, h.deps, session.AccessToken, "svc1")
	requireKind(t, err, autherr.KindTokenRevoked)
	_, err = RunRefresh(ctx, h.deps, session.RefreshToken)
	requireKind(t, err, autherr.KindSessionExpired)
	if _, err := RunAuthorize(ctx, h.deps, res.AccessToken, "svc1"); err != nil {
		t.Fatalf("new access token must authorize: %v", err)
	}
	if _, err := RunSignIn(ctx, h.deps, "alice", newPassword); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
}

func TestChangePasswordLeavesForeignRefreshToken(t *testing.T) {
	h := newHarness(t)
	h.addPrincipal(domain.Principal{Username: "alice", IsActive: true})
	h.addPrincipal(domain.Principal{Username: "bob", IsActive: true})
	ctx := context.Background()
	alice := h.signIn("alice")
	bob := h.signIn("bob")

	if _, err := RunChangePassword(ctx, h.deps, alice.AccessToken, bob.RefreshToken, goodPassword, newPassword, newPassword); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if h.mr.Exists(bob.RefreshToken) {
		t.Fatal("another principal's refresh token must not be revoked")
	}
	if _, err := RunRefresh(ctx, h.deps, bob.RefreshToken); err != nil {
		t.Fatalf("foreign refresh token must keep working: %v", err)
	}
}
