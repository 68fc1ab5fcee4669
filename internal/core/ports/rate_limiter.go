package ports

import "context"

// RateLimiter answers whether one more call under key is allowed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
