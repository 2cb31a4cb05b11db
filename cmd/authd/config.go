package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/mail"
)

type redisConfig struct {
	Addr     string
	Password string
	DB       int
}

type rateLimitConfig struct {
	RPS     float64
	Burst   int
	MaxIPs  int
	Enabled bool
}

// daemonConfig is everything authd reads from the environment.
type daemonConfig struct {
	HTTPAddr        string
	DatabaseURL     string
	Redis           redisConfig
	SMTP            mail.SMTPConfig
	LogFormat       string
	LogLevel        string
	CORSOrigins     []string
	RateLimit       rateLimitConfig
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	Engine          tenantauth.Config
}

func loadConfig() (daemonConfig, error) {
	engine := tenantauth.DefaultConfig()
	if getEnvBool("AUTH_HIGH_SECURITY", false) {
		engine = tenantauth.HighSecurityConfig()
	}

	engine.JWT.Issuer = getEnv("AUTH_JWT_ISSUER", engine.JWT.Issuer)
	engine.JWT.Access.PrivateKey = []byte(os.Getenv("AUTH_ACCESS_SECRET"))
	engine.JWT.Refresh.PrivateKey = []byte(os.Getenv("AUTH_REFRESH_SECRET"))
	engine.JWT.MFAChallenge.PrivateKey = []byte(os.Getenv("AUTH_MFA_SECRET"))
	engine.JWT.PasswordReset.PrivateKey = []byte(os.Getenv("AUTH_RESET_SECRET"))

	var err error
	if engine.JWT.Access.TTL, err = getEnvDuration("AUTH_ACCESS_TTL", engine.JWT.Access.TTL); err != nil {
		return daemonConfig{}, err
	}
	if engine.JWT.Refresh.TTL, err = getEnvDuration("AUTH_REFRESH_TTL", engine.JWT.Refresh.TTL); err != nil {
		return daemonConfig{}, err
	}

	engine.MFA.Issuer = getEnv("AUTH_MFA_ISSUER", engine.MFA.Issuer)
	engine.PasswordReset.LinkTemplate = getEnv("AUTH_RESET_LINK", engine.PasswordReset.LinkTemplate)
	engine.Security.RotateRefreshTokens = getEnvBool("AUTH_ROTATE_REFRESH", engine.Security.RotateRefreshTokens)
	engine.Security.ActivateOnSignUp = getEnvBool("AUTH_ACTIVATE_ON_SIGN_UP", engine.Security.ActivateOnSignUp)
	engine.Cookie.Secure = getEnvBool("AUTH_HTTPS", engine.Cookie.Secure)
	engine.Cookie.Domain = getEnv("AUTH_COOKIE_DOMAIN", engine.Cookie.Domain)
	engine.Audit.Enabled = getEnvBool("AUTH_AUDIT", true)
	engine.Metrics.Enabled = true
	engine.Metrics.EnableLatencyHistograms = true

	cfg := daemonConfig{
		HTTPAddr:    getEnv("AUTH_HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("AUTH_DATABASE_URL"),
		Redis: redisConfig{
			Addr:     os.Getenv("AUTH_REDIS_ADDR"),
			Password: os.Getenv("AUTH_REDIS_PASSWORD"),
		},
		SMTP: mail.SMTPConfig{
			Host:     os.Getenv("AUTH_SMTP_HOST"),
			Username: os.Getenv("AUTH_SMTP_USERNAME"),
			Password: os.Getenv("AUTH_SMTP_PASSWORD"),
			From:     os.Getenv("AUTH_SMTP_FROM"),
		},
		LogFormat:   getEnv("AUTH_LOG_FORMAT", "json"),
		LogLevel:    getEnv("AUTH_LOG_LEVEL", "info"),
		CORSOrigins: splitList(os.Getenv("AUTH_CORS_ORIGINS")),
		Engine:      engine,
	}

	if cfg.Redis.DB, err = getEnvInt("AUTH_REDIS_DB", 0); err != nil {
		return daemonConfig{}, err
	}
	if cfg.SMTP.Port, err = getEnvInt("AUTH_SMTP_PORT", 587); err != nil {
		return daemonConfig{}, err
	}
	if cfg.RateLimit.RPS, err = getEnvFloat("AUTH_RATE_LIMIT_RPS", 10); err != nil {
		return daemonConfig{}, err
	}
	if cfg.RateLimit.Burst, err = getEnvInt("AUTH_RATE_LIMIT_BURST", 20); err != nil {
		return daemonConfig{}, err
	}
	if cfg.RateLimit.MaxIPs, err = getEnvInt("AUTH_RATE_LIMIT_MAX_IPS", 10_000); err != nil {
		return daemonConfig{}, err
	}
	cfg.RateLimit.Enabled = cfg.RateLimit.RPS > 0
	if cfg.ShutdownTimeout, err = getEnvDuration("AUTH_SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return daemonConfig{}, err
	}
	maxBody, err := getEnvInt("AUTH_MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return daemonConfig{}, err
	}
	cfg.MaxBodyBytes = int64(maxBody)

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// getEnvBool treats unparseable values as fallback.
func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
