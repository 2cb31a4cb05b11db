// Package mfa generates TOTP secrets, renders provisioning material, and
// validates submitted codes with the standard RFC 6238 parameters.
package mfa

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	secretBytes       = 20
	DefaultIssuer     = "Auth Service"
	DefaultQRCodeSize = 250
)

// ErrInvalidSecret is returned when a stored secret is not valid base32.
var ErrInvalidSecret = errors.New("mfa: invalid secret")

// Config controls provisioning output. Validation parameters are fixed at the
// algorithm defaults: 30 second period, 6 digits, SHA1, one step of skew.
type Config struct {
	Issuer     string
	QRCodeSize int
	Now        func() time.Time
}

// TOTP is safe for concurrent use.
type TOTP struct {
	issuer string
	size   int
	now    func() time.Time
}

func New(cfg Config) *TOTP {
	t := &TOTP{issuer: cfg.Issuer, size: cfg.QRCodeSize, now: cfg.Now}
	if t.issuer == "" {
		t.issuer = DefaultIssuer
	}
	if t.size <= 0 {
		t.size = DefaultQRCodeSize
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

var validateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateSecret returns a new 160-bit secret, base32 without padding.
func (t *TOTP) GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// ProvisioningURI returns the otpauth URI that authenticator apps enroll from.
func (t *TOTP) ProvisioningURI(username, secret string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", t.issuer)
	return "otpauth://totp/" + url.PathEscape(t.issuer+":"+username) + "?" + v.Encode()
}

// QRCode renders the provisioning URI as a base64-encoded PNG.
func (t *TOTP) QRCode(username, secret string) (string, error) {
	key, err := otp.NewKeyFromURL(t.ProvisioningURI(username, secret))
	if err != nil {
		return "", fmt.Errorf("build provisioning key: %w", err)
	}
	img, err := key.Image(t.size, t.size)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Verify reports whether code is valid for secret at the current time.
func (t *TOTP) Verify(secret, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}
	ok, err := totp.ValidateCustom(code, secret, t.now().UTC(), validateOpts)
	if err != nil {
		if errors.Is(err, otp.ErrValidateInputInvalidLength) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return ok, nil
}
