package webhooks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(ctx, "sub-1"), "request %d should be allowed", i)
	}
	assert.False(t, rl.Allow(ctx, "sub-1"))
}

func TestRateLimiterIsolatesSubscriptions(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	ctx := context.Background()

	assert.True(t, rl.Allow(ctx, "sub-1"))
	assert.False(t, rl.Allow(ctx, "sub-1"))
	assert.True(t, rl.Allow(ctx, "sub-2"))
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)
	ctx := context.Background()

	require.True(t, rl.Allow(ctx, "sub-1"))
	require.False(t, rl.Allow(ctx, "sub-1"))

	time.Sleep(25 * time.Millisecond)
	assert.True(t, rl.Allow(ctx, "sub-1"))
}

func TestDistributedRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rl := NewDistributedRateLimiter(client, 2, time.Minute)
	ctx := context.Background()

	assert.True(t, rl.Allow(ctx, "sub-1"))
	assert.True(t, rl.Allow(ctx, "sub-1"))
	assert.False(t, rl.Allow(ctx, "sub-1"))

	// Other subscriptions keep their own window.
	assert.True(t, rl.Allow(ctx, "sub-2"))
}

func TestDistributedRateLimiterWindowExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rl := NewDistributedRateLimiter(client, 1, time.Second)
	ctx := context.Background()

	require.True(t, rl.Allow(ctx, "sub-1"))
	require.False(t, rl.Allow(ctx, "sub-1"))

	mr.FastForward(2 * time.Second)
	assert.True(t, rl.Allow(ctx, "sub-1"))
}

func TestDistributedRateLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rl := NewDistributedRateLimiter(client, 1, time.Minute)
	mr.Close()

	assert.True(t, rl.Allow(context.Background(), "sub-1"))
}
