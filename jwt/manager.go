package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the algorithm used for one token kind.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519 keys.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

const minHMACSecretBytes = 32

var (
	// ErrInvalidToken is returned for any token that fails signature, structure,
	// expiry, or kind validation. Callers should not branch on the wrapped cause.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnknownKind is returned when a kind has no configured key.
	ErrUnknownKind = errors.New("unknown token kind")
	// ErrSigningUnavailable is returned when a verify-only kind is asked to issue.
	ErrSigningUnavailable = errors.New("signing key not configured")
)

// KeyConfig holds the key material and lifetime of a single token kind.
//
// For MethodHS256 PrivateKey is the shared secret and PublicKey is ignored.
// For MethodEd25519 PrivateKey may be omitted on verify-only deployments.
type KeyConfig struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	KeyID         string
	TTL           time.Duration
}

// Config defines the codec for all four token kinds.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Access        KeyConfig
	Refresh       KeyConfig
	MFAChallenge  KeyConfig
	PasswordReset KeyConfig

	Issuer       string
	Leeway       time.Duration
	MaxFutureIAT time.Duration

	// Now overrides the clock used for issuing and validating. Nil means time.Now.
	Now func() time.Time
}

// Manager issues and decodes signed tokens. Each kind is signed and verified
// only with its own key, so a token of one kind never decodes as another.
type Manager struct {
	keys         map[Kind]*keySet
	issuer       string
	leeway       time.Duration
	maxFutureIAT time.Duration
	now          func() time.Time
}

type keySet struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	keyID     string
	ttl       time.Duration
}

// NewManager validates cfg and prepares per-kind key sets.
//
// NewManager returns an error when a kind is misconfigured or when two HS256
// kinds share the same secret.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}

	m := &Manager{
		keys:         make(map[Kind]*keySet, 4),
		issuer:       cfg.Issuer,
		leeway:       cfg.Leeway,
		maxFutureIAT: cfg.MaxFutureIAT,
		now:          cfg.Now,
	}
	if m.now == nil {
		m.now = time.Now
	}

	secrets := make(map[string]Kind, 4)
	for _, kc := range []struct {
		kind Kind
		cfg  KeyConfig
	}{
		{KindAccess, cfg.Access},
		{KindRefresh, cfg.Refresh},
		{KindMFAChallenge, cfg.MFAChallenge},
		{KindPasswordReset, cfg.PasswordReset},
	} {
		ks, err := newKeySet(kc.cfg)
		if err != nil {
			return nil, fmt.Errorf("%s key: %w", kc.kind, err)
		}
		if kc.cfg.SigningMethod == MethodHS256 {
			if other, dup := secrets[string(kc.cfg.PrivateKey)]; dup {
				return nil, fmt.Errorf("%s and %s must not share a signing secret", other, kc.kind)
			}
			secrets[string(kc.cfg.PrivateKey)] = kc.kind
		}
		m.keys[kc.kind] = ks
	}

	return m, nil
}

func newKeySet(cfg KeyConfig) (*keySet, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	ks := &keySet{keyID: strings.TrimSpace(cfg.KeyID), ttl: cfg.TTL}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACSecretBytes {
			return nil, fmt.Errorf("hs256 requires a secret of at least %d bytes", minHMACSecretBytes)
		}
		ks.method = jwt.SigningMethodHS256
		ks.signKey = cfg.PrivateKey
		ks.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		ks.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			ks.signKey = priv
			ks.verifyKey = priv.Public()
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			ks.verifyKey = pub
		}
		if ks.verifyKey == nil {
			return nil, errors.New("ed25519 requires a public or private key")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return ks, nil
}

// TTL reports the configured lifetime of kind.
func (m *Manager) TTL(kind Kind) time.Duration {
	ks, ok := m.keys[kind]
	if !ok {
		return 0
	}
	return ks.ttl
}

// Issue signs a new token of kind for subject. A zero ttl uses the kind's
// configured lifetime. The returned time is the exact exp claim.
func (m *Manager) Issue(kind Kind, subject string, ttl time.Duration) (string, time.Time, error) {
	ks, ok := m.keys[kind]
	if !ok {
		return "", time.Time{}, ErrUnknownKind
	}
	if ks.signKey == nil {
		return "", time.Time{}, ErrSigningUnavailable
	}
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}
	if ttl <= 0 {
		ttl = ks.ttl
	}

	now := m.now()
	claims := Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(ks.method, claims)
	if ks.keyID != "" {
		token.Header["kid"] = ks.keyID
	}
	signed, err := token.SignedString(ks.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// IssueAccess issues an Access token for a principal uuid.
func (m *Manager) IssueAccess(principalUUID string) (string, time.Time, error) {
	return m.Issue(KindAccess, principalUUID, 0)
}

// IssueRefresh issues a Refresh token for a principal uuid.
func (m *Manager) IssueRefresh(principalUUID string) (string, time.Time, error) {
	return m.Issue(KindRefresh, principalUUID, 0)
}

// IssueMFAChallenge issues an MFA-Challenge token whose subject is the username.
func (m *Manager) IssueMFAChallenge(username string) (string, time.Time, error) {
	return m.Issue(KindMFAChallenge, username, 0)
}

// IssuePasswordReset issues a Password-Reset token bound to a principal uuid.
func (m *Manager) IssuePasswordReset(principalUUID string) (string, time.Time, error) {
	if _, err := uuid.Parse(principalUUID); err != nil {
		return "", time.Time{}, fmt.Errorf("password reset subject must be a uuid: %w", err)
	}
	return m.Issue(KindPasswordReset, principalUUID, 0)
}

// Decode verifies tokenStr as kind and returns its claims.
//
// Every failure is reported as ErrInvalidToken. Expiry is always required and
// checked here without leeway, so callers never see claims from a token past
// its exp. Leeway only tolerates clock skew on iat and nbf.
func (m *Manager) Decode(kind Kind, tokenStr string) (*Claims, error) {
	ks, ok := m.keys[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	if tokenStr == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ks.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
	if m.leeway > 0 {
		options = append(options, jwt.WithLeeway(m.leeway))
	}
	if m.issuer != "" {
		options = append(options, jwt.WithIssuer(m.issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != ks.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if ks.keyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != ks.keyID {
				return nil, errors.New("unknown kid")
			}
		}
		return ks.verifyKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenInvalidClaims)
	}
	if err := claims.validateFor(kind, m.now(), m.maxFutureIAT); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims, nil
}

// DecodeAccess decodes an Access token.
func (m *Manager) DecodeAccess(tokenStr string) (*Claims, error) {
	return m.Decode(KindAccess, tokenStr)
}

// DecodeRefresh decodes a Refresh token.
func (m *Manager) DecodeRefresh(tokenStr string) (*Claims, error) {
	return m.Decode(KindRefresh, tokenStr)
}

// DecodeMFAChallenge decodes an MFA-Challenge token.
func (m *Manager) DecodeMFAChallenge(tokenStr string) (*Claims, error) {
	return m.Decode(KindMFAChallenge, tokenStr)
}

// DecodePasswordReset decodes a Password-Reset token.
func (m *Manager) DecodePasswordReset(tokenStr string) (*Claims, error) {
	return m.Decode(KindPasswordReset, tokenStr)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
