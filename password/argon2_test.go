package password

import (
	"errors"
	"strings"
	"testing"
)

func secureConfig() Config {
	return Config{
		Memory:      65536,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	hasher := newHasher(t, secureConfig())

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}

	ok, err = hasher.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestVerifyAcceptsPaddedEncoding(t *testing.T) {
	hasher := newHasher(t, secureConfig())
	hash, err := hasher.Hash("Secret#2024")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	parts := strings.Split(hash, "$")
	parts[4] = padB64(parts[4])
	parts[5] = padB64(parts[5])
	padded := strings.Join(parts, "$")

	ok, err := hasher.Verify("Secret#2024", padded)
	if err != nil || !ok {
		t.Fatalf("expected padded hash to verify: ok=%v err=%v", ok, err)
	}
}

func padB64(s string) string {
	if n := len(s) % 4; n != 0 {
		return s + strings.Repeat("=", 4-n)
	}
	return s
}

func TestNeedsUpgrade(t *testing.T) {
	oldHasher := newHasher(t, Config{Memory: 32768, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	hash, err := oldHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	needsUpgrade, err := newHasher(t, secureConfig()).NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !needsUpgrade {
		t.Fatal("expected NeedsUpgrade to return true for weaker hash parameters")
	}

	same, err := oldHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if same {
		t.Fatal("expected NeedsUpgrade to return false for current parameters")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := newHasher(t, secureConfig())

	if _, err := hasher.Verify("password", "not-a-phc-hash"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}

	hash, err := hasher.Hash("version-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	wrongVersion := strings.Replace(hash, "$v=19$", "$v=18$", 1)
	if _, err := hasher.Verify("version-test", wrongVersion); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected unsupported version to fail, got %v", err)
	}

	weak := strings.Replace(hash, "m=65536", "m=1024", 1)
	if _, err := hasher.Verify("version-test", weak); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected below-floor parameters to fail, got %v", err)
	}
}

func TestHashTooShortPassword(t *testing.T) {
	hasher := newHasher(t, secureConfig())

	if _, err := hasher.Hash(""); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected empty password to fail, got %v", err)
	}
	if _, err := hasher.Hash("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected short password to fail, got %v", err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	for name, cfg := range map[string]Config{
		"memory":      {Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		"time":        {Memory: 65536, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		"parallelism": {Memory: 65536, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		"salt":        {Memory: 65536, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32},
		"key":         {Memory: 65536, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	} {
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("%s: expected config to be rejected", name)
		}
	}
}
