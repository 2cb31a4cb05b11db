package tenantauth

import (
	"context"
	"testing"
)

func TestEngineSignUp(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Security.ActivateOnSignUp = true })
	ctx := context.Background()

	res, err := env.engine.SignUp(ctx, SignUpRequest{
		Username:        "carol",
		Email:           "carol@example.com",
		Password:        testPassword,
		PasswordConfirm: testPassword,
		EnableMFA:       true,
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.QRCode == "" || res.MFAPending || res.Principal.MFASecret != "" {
		t.Fatalf("unexpected sign-up result %+v", res)
	}
	ev := env.nextEvent(t, auditEventSignUpSuccess)
	if ev.PrincipalID != res.Principal.UUID || ev.Metadata["mfa"] != "true" {
		t.Fatalf("unexpected audit event %+v", ev)
	}

	signIn, err := env.engine.SignIn(ctx, "carol", testPassword)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if !signIn.MFARequired {
		t.Fatal("expected mfa challenge for a principal enrolled at sign-up")
	}

	_, err = env.engine.SignUp(ctx, SignUpRequest{
		Username:        "carol2",
		Email:           "CAROL@example.com",
		Password:        testPassword,
		PasswordConfirm: testPassword,
	})
	requireKind(t, err, KindConflict)
	if ev := env.nextEvent(t, auditEventSignUpFailure); ev.Error != string(KindConflict) {
		t.Fatalf("unexpected failure event %+v", ev)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricSignUpSuccess] != 1 || snap.Counters[MetricSignUpFailure] != 1 {
		t.Fatalf("unexpected sign-up counters %v", snap.Counters)
	}
}

func TestEngineUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addPrincipal(t, Principal{Username: "alice", IsActive: true, Memberships: []ServiceMembership{svc1Member("editor")}})
	ctx := context.Background()

	session, err := env.engine.SignIn(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if _, err := env.engine.Profile(ctx, session.AccessToken); err != nil {
		t.Fatalf("Profile: %v", err)
	}

	res, err := env.engine.UpdateProfile(ctx, session.AccessToken, session.RefreshToken, ProfileUpdate{Email: "alice@new.example.com"})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if ev := env.nextEvent(t, auditEventProfileUpdated); ev.PrincipalID != alice.UUID {
		t.Fatalf("unexpected audit event %+v", ev)
	}
	if env.mr.Exists("member:" + alice.UUID) {
		t.Fatal("member cache entry must be invalidated")
	}

	_, err = env.engine.Profile(ctx, session.AccessToken)
	requireKind(t, err, KindTokenRevoked)
	p, err := env.engine.Profile(ctx, res.AccessToken)
	if err != nil {
		t.Fatalf("Profile with rotated token: %v", err)
	}
	if p.Email != "alice@new.example.com" {
		t.Fatalf("expected updated email, got %q", p.Email)
	}
	if env.engine.MetricsSnapshot().Counters[MetricProfileUpdated] != 1 {
		t.Fatal("expected profile update counter")
	}

	_, err = env.engine.UpdateProfile(ctx, res.AccessToken, res.RefreshToken, ProfileUpdate{Username: "no spaces allowed"})
	requireKind(t, err, KindInvalidProfile)
	env.nextEvent(t, auditEventProfileUpdateFailure)
}
