package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrRedisUnavailable = errors.New("redis unavailable")
)

type Config struct {
	MaxRequests int           // attempts per window, per key
	Window      time.Duration // fixed window length
}

// ResetLimiter throttles the password-reset endpoints per email and per IP
// with Redis counters, so one client cannot burn through codes or probe
// the verify endpoint.
type ResetLimiter struct {
	redis redis.UniversalClient
	cfg   Config
}

func New(redisClient redis.UniversalClient, cfg Config) *ResetLimiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}

	return &ResetLimiter{
		redis: redisClient,
		cfg:   cfg,
	}
}

// Allow increments the counters for the email+IP pair and reports whether
// the attempt is inside the budget.
func (l *ResetLimiter) Allow(ctx context.Context, email, ip string) error {
	if err := l.bump(ctx, emailKey(email)); err != nil {
		return err
	}

	if ip != "" {
		if err := l.bump(ctx, ipKey(ip)); err != nil {
			return err
		}
	}

	return nil
}

func (l *ResetLimiter) bump(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		// first hit opens the window
		if err := l.redis.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(l.cfg.MaxRequests) {
		return ErrRateLimited
	}

	return nil
}

func emailKey(email string) string {
	return "ticketdesk:reset:email:" + email
}

func ipKey(ip string) string {
	return "ticketdesk:reset:ip:" + ip
}
