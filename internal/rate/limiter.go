package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is one fixed-window budget. A zero Max disables it.
type Window struct {
	Max      int
	Cooldown time.Duration
}

func (w Window) enabled() bool {
	return w.Max > 0 && w.Cooldown > 0
}

// Config holds the budgets for each throttled operation.
type Config struct {
	SignIn         Window
	MFAVerify      Window
	ForgotPassword Window
	Timeout        time.Duration
}

// Limiter counts failures and requests in Redis. A nil *Limiter allows everything.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by redisClient.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 200 * time.Millisecond
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// CheckSignIn fails with ErrRateLimited once username has exhausted its
// failed sign-in budget.
func (l *Limiter) CheckSignIn(ctx context.Context, username string) error {
	if l == nil {
		return nil
	}
	return l.check(ctx, signInKey(username), l.config.SignIn)
}

// RecordSignInFailure counts one failed sign-in for username.
func (l *Limiter) RecordSignInFailure(ctx context.Context, username string) error {
	if l == nil {
		return nil
	}
	_, err := l.increment(ctx, signInKey(username), l.config.SignIn)
	return err
}

// ResetSignIn clears the failure counters after a successful sign-in.
func (l *Limiter) ResetSignIn(ctx context.Context, username string) error {
	if l == nil {
		return nil
	}
	return l.reset(ctx, signInKey(username), mfaKey(username))
}

func (l *Limiter) CheckMFA(ctx context.Context, username string) error {
	if l == nil {
		return nil
	}
	return l.check(ctx, mfaKey(username), l.config.MFAVerify)
}

func (l *Limiter) RecordMFAFailure(ctx context.Context, username string) error {
	if l == nil {
		return nil
	}
	_, err := l.increment(ctx, mfaKey(username), l.config.MFAVerify)
	return err
}

// AllowForgotPassword counts a reset request for email and reports
// ErrRateLimited when the window is exhausted.
func (l *Limiter) AllowForgotPassword(ctx context.Context, email string) error {
	if l == nil || !l.config.ForgotPassword.enabled() {
		return nil
	}
	count, err := l.increment(ctx, forgotKey(email), l.config.ForgotPassword)
	if err != nil {
		return err
	}
	if count > int64(l.config.ForgotPassword.Max) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) check(ctx context.Context, key string, w Window) error {
	if !w.enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(w.Max) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) increment(ctx context.Context, key string, w Window) (int64, error) {
	if !w.enabled() {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// Fixed window: the first hit opens it.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, w.Cooldown).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func (l *Limiter) reset(ctx context.Context, keys ...string) error {
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func signInKey(username string) string {
	return "rl:signin:" + strings.ToLower(username)
}

func mfaKey(username string) string {
	return "rl:mfa:" + strings.ToLower(username)
}

func forgotKey(email string) string {
	return "rl:forgot:" + strings.ToLower(email)
}
