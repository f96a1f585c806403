package service

import (
	"context"
	"fmt"
	"time"

	"github.com/marketlens/account-service/pkg/database"
)

// ResendThrottle limits how often a fresh code can be requested for one
// email.
type ResendThrottle interface {
	// Allow reports whether a new code may be issued, and if not, how long
	// the caller has to wait.
	Allow(ctx context.Context, email string) (bool, time.Duration, error)

	// Mark starts the resend window after a code has been issued.
	Mark(ctx context.Context, email string) error
}

// OTPThrottle implements ResendThrottle on a Redis key with the resend
// window as its TTL.
type OTPThrottle struct {
	redis  *database.Redis
	window time.Duration
}

// NewOTPThrottle creates a new OTP resend throttle
func NewOTPThrottle(redis *database.Redis, window time.Duration) *OTPThrottle {
	return &OTPThrottle{redis: redis, window: window}
}

// Allow reports whether a new code may be issued for the email, and if not,
// how long the caller has to wait.
func (t *OTPThrottle) Allow(ctx context.Context, email string) (bool, time.Duration, error) {
	key := fmt.Sprintf("otp:resend:%s", email)

	ttl, err := t.redis.Client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to check OTP resend throttle: %w", err)
	}

	// TTL <= 0 means the key is absent or expired
	if ttl <= 0 {
		return true, 0, nil
	}

	return false, ttl, nil
}

// Mark starts the resend window after a code has been issued
func (t *OTPThrottle) Mark(ctx context.Context, email string) error {
	key := fmt.Sprintf("otp:resend:%s", email)

	if err := t.redis.Client.Set(ctx, key, "1", t.window).Err(); err != nil {
		return fmt.Errorf("failed to set OTP resend throttle: %w", err)
	}

	return nil
}
