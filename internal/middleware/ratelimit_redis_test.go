package middleware

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTestClient connects to a local Redis or skips the test.
func redisTestClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func uniqueKey(prefix string) string {
	return prefix + "-" + strconv.FormatInt(time.Now().UnixNano(), 10)
}

func TestRedisRateLimitStoreAllow(t *testing.T) {
	client := redisTestClient(t)
	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
	}

	ctx := context.Background()
	key := uniqueKey("narrate-quota")
	defer client.Del(ctx, redisRateLimitPrefix+key)

	for i := 0; i < 5; i++ {
		if allowed, _ := store.Allow(ctx, key, config); !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter := store.Allow(ctx, key, config)
	if allowed {
		t.Error("request over the window limit should be blocked")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want between 1 and 60", retryAfter)
	}
}

func TestRedisRateLimitStoreDifferentKeys(t *testing.T) {
	client := redisTestClient(t)
	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	}

	ctx := context.Background()
	key1 := uniqueKey("user-a")
	key2 := uniqueKey("user-b")
	defer client.Del(ctx, redisRateLimitPrefix+key1, redisRateLimitPrefix+key2)

	allowed1, _ := store.Allow(ctx, key1, config)
	allowed2, _ := store.Allow(ctx, key2, config)
	if !allowed1 || !allowed2 {
		t.Error("each key should be allowed its first request")
	}

	blocked1, _ := store.Allow(ctx, key1, config)
	blocked2, _ := store.Allow(ctx, key2, config)
	if blocked1 || blocked2 {
		t.Error("both keys should be blocked after reaching their limit")
	}
}

func TestRedisRateLimitStoreWindowExpiry(t *testing.T) {
	client := redisTestClient(t)
	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    100 * time.Millisecond,
	}

	ctx := context.Background()
	key := uniqueKey("expiry")
	defer client.Del(ctx, redisRateLimitPrefix+key)

	if allowed, _ := store.Allow(ctx, key, config); !allowed {
		t.Error("first request should be allowed")
	}
	if allowed, _ := store.Allow(ctx, key, config); allowed {
		t.Error("second request should be blocked")
	}

	time.Sleep(150 * time.Millisecond)

	if allowed, _ := store.Allow(ctx, key, config); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

// The limiter must fail open when Redis is unreachable so catalog traffic is
// never dropped by an infrastructure outage.
func TestRedisRateLimitStoreFailOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:9999"})
	defer client.Close()

	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
	}

	allowed, retryAfter := store.Allow(context.Background(), "unreachable", config)
	if !allowed {
		t.Error("store should fail open when Redis is unavailable")
	}
	if retryAfter != 0 {
		t.Errorf("retryAfter = %d on error, want 0", retryAfter)
	}
}
