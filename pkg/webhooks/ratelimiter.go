package webhooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Limiter bounds the delivery rate per subscription
type Limiter interface {
	// Allow reports whether a delivery to the given subscription may
	// proceed right now
	Allow(ctx context.Context, subscriptionID string) bool
}

// RateLimiter implements token bucket rate limiting per subscription
type RateLimiter struct {
	buckets      map[string]*tokenBucket
	mutex        sync.Mutex
	maxTokens    int
	refillPeriod time.Duration
}

type tokenBucket struct {
	tokens       int
	maxTokens    int
	refillPeriod time.Duration
	lastRefill   time.Time
	mutex        sync.Mutex
}

// NewRateLimiter creates a local token bucket limiter allowing maxRequests
// per period per subscription
func NewRateLimiter(maxRequests int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:      make(map[string]*tokenBucket),
		maxTokens:    maxRequests,
		refillPeriod: period,
	}
}

// Allow checks if a delivery is allowed for the given subscription
func (rl *RateLimiter) Allow(ctx context.Context, subscriptionID string) bool {
	rl.mutex.Lock()
	bucket, exists := rl.buckets[subscriptionID]
	if !exists {
		bucket = &tokenBucket{
			tokens:       rl.maxTokens,
			maxTokens:    rl.maxTokens,
			refillPeriod: rl.refillPeriod,
			lastRefill:   time.Now(),
		}
		rl.buckets[subscriptionID] = bucket
	}
	rl.mutex.Unlock()

	return bucket.take()
}

// take attempts to take a token from the bucket
func (tb *tokenBucket) take() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	// Refill tokens based on time elapsed
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed >= tb.refillPeriod {
		periods := int(elapsed / tb.refillPeriod)
		tb.tokens = min(tb.tokens+periods, tb.maxTokens)
		tb.lastRefill = tb.lastRefill.Add(time.Duration(periods) * tb.refillPeriod)
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// DistributedRateLimiter implements rate limiting using Redis so limits are
// shared across instances. Redis errors fail open to keep deliveries
// flowing when the limiter backend is down.
type DistributedRateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewDistributedRateLimiter creates a Redis-backed limiter allowing limit
// deliveries per window per subscription
func NewDistributedRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *DistributedRateLimiter {
	return &DistributedRateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
		prefix: "webhook:ratelimit",
	}
}

// Allow checks the delivery against a fixed-window counter in Redis
func (rl *DistributedRateLimiter) Allow(ctx context.Context, subscriptionID string) bool {
	key := fmt.Sprintf("%s:%s", rl.prefix, subscriptionID)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)

	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open on Redis errors to prevent delivery disruption
		return true
	}

	return incr.Val() <= int64(rl.limit)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
