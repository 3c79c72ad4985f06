package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRateLimitPrefix namespaces rate limit keys in Redis.
const redisRateLimitPrefix = "ratelimit:"

// RedisRateLimitStore implements RateLimitStore on Redis using a fixed
// window counter (INCR + EXPIRE). State is shared across API instances, so
// horizontally scaled deployments enforce one combined limit.
//
// The store fails open: if Redis is unreachable the request is allowed,
// since dropping traffic on a cache outage is worse than briefly losing
// rate limiting.
type RedisRateLimitStore struct {
	client *redis.Client
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// Allow checks if a request from the given key should be allowed.
// Implements the RateLimitStore interface.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	rkey := redisRateLimitPrefix + key

	count, err := s.client.Incr(ctx, rkey).Result()
	if err != nil {
		slog.WarnContext(ctx, "rate limit store unavailable, failing open", "error", err)
		return true, 0
	}

	// First hit in the window owns setting the expiry.
	if count == 1 {
		if err := s.client.Expire(ctx, rkey, config.WindowDuration).Err(); err != nil {
			slog.WarnContext(ctx, "failed to set rate limit expiry", "error", err)
		}
	}

	if count <= int64(config.RequestsPerWindow) {
		return true, 0
	}

	ttl, err := s.client.TTL(ctx, rkey).Result()
	if err != nil || ttl <= 0 {
		return false, 1
	}
	retryAfter := int(ttl / time.Second)
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, retryAfter
}
