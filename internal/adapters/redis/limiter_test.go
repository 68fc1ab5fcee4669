package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T, limit int) (*miniredis.Miniredis, *FixedWindowLimiter) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	log := zerolog.Nop()
	return mr, NewFixedWindowLimiter(client, limit, time.Minute, &log)
}

func TestFixedWindowLimiter_Allow(t *testing.T) {
	mr, limiter := setupLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "lookup:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "call %d", i+1)
	}

	ok, err := limiter.Allow(ctx, "lookup:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Keys are independent.
	ok, err = limiter.Allow(ctx, "lookup:10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"lookup:10.0.0.1"))
}

func TestFixedWindowLimiter_WindowResets(t *testing.T) {
	mr, limiter := setupLimiter(t, 1)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFixedWindowLimiter_RedisDown(t *testing.T) {
	mr, limiter := setupLimiter(t, 1)
	mr.Close()

	_, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url")
	assert.Error(t, err)
}
