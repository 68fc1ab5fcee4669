// Package redis implements ports.RateLimiter on Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

const keyPrefix = "nda:ratelimit:"

// NewClient parses a redis:// URL and checks the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// FixedWindowLimiter allows limit calls per key in each window.
type FixedWindowLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	log    zerolog.Logger
}

var _ ports.RateLimiter = (*FixedWindowLimiter)(nil)

// NewFixedWindowLimiter creates a limiter over client.
func NewFixedWindowLimiter(client *redis.Client, limit int, window time.Duration, baseLogger *zerolog.Logger) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		log:    baseLogger.With().Str("component", "rate_limiter").Logger(),
	}
}

// Allow counts the call and reports whether it stays within the limit. The
// window starts with the first call under key.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := keyPrefix + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		l.log.Error().Err(err).Msg("Failed to increment rate counter")
		return false, err
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			l.log.Error().Err(err).Msg("Failed to set rate window")
			return false, err
		}
	}
	if n > l.limit {
		l.log.Warn().Str("key", key).Int64("count", n).Msg("Rate limit exceeded")
		return false, nil
	}
	return true, nil
}
