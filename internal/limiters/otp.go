package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrOTPRateLimited        = errors.New("otp rate limited")
	ErrOTPLimiterUnavailable = errors.New("otp limiter unavailable")
)

type OTPConfig struct {
	EnableEmailThrottle bool
	EnableIPThrottle    bool
	Window              time.Duration
	MaxRequests         int
}

// OTPLimiter bounds how many challenges may be issued per email (and per IP)
// inside a fixed window, independent of the per-challenge attempt cap.
type OTPLimiter struct {
	redis  redis.UniversalClient
	config OTPConfig
}

func NewOTPLimiter(redisClient redis.UniversalClient, cfg OTPConfig) *OTPLimiter {
	return &OTPLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *OTPLimiter) CheckIssue(ctx context.Context, purpose byte, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableEmailThrottle {
		if err := l.enforceFixedWindow(ctx, otpIssueEmailKey(purpose, email)); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, otpIssueIPKey(purpose, ip)); err != nil {
			return err
		}
	}
	return nil
}

func (l *OTPLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOTPLimiterUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrOTPLimiterUnavailable, err)
		}
	}

	if count > int64(l.config.MaxRequests) {
		return ErrOTPRateLimited
	}

	return nil
}

func otpIssueEmailKey(purpose byte, email string) string {
	return fmt.Sprintf("idoi:%d:%s", purpose, email)
}

func otpIssueIPKey(purpose byte, ip string) string {
	return fmt.Sprintf("idoip:%d:%s", purpose, ip)
}
