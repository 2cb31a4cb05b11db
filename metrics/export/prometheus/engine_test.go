package prometheus

import (
	"context"
	"strings"
	"testing"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/store/memory"
)

type discardMailer struct{}

func (discardMailer) Send(context.Context, string, string, string) error { return nil }

func newEngine(t *testing.T) *tenantauth.Engine {
	t.Helper()
	cfg := tenantauth.DefaultConfig()
	cfg.JWT.Access.PrivateKey = []byte("access-" + strings.Repeat("k", 40))
	cfg.JWT.Refresh.PrivateKey = []byte("refresh-" + strings.Repeat("k", 40))
	cfg.JWT.MFAChallenge.PrivateKey = []byte("mfa-" + strings.Repeat("k", 40))
	cfg.JWT.PasswordReset.PrivateKey = []byte("reset-" + strings.Repeat("k", 40))
	cfg.Metrics.Enabled = true

	engine, err := tenantauth.New().
		WithConfig(cfg).
		WithStore(memory.New()).
		WithMailer(discardMailer{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
