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
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisRateLimitStore_Allow(t *testing.T) {
	client := redisTestClient(t)
	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
	}

	testKey := "test-redis-key-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	ctx := context.Background()
	defer client.Del(ctx, ratelimitKeyPrefix+testKey)

	for i := 0; i < 5; i++ {
		allowed, _ := store.Allow(ctx, testKey, config)
		if !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter := store.Allow(ctx, testKey, config)
	if allowed {
		t.Error("6th request should be blocked")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("expected retryAfter between 1 and 60, got %d", retryAfter)
	}
}

func TestRedisRateLimitStore_DifferentKeys(t *testing.T) {
	client := redisTestClient(t)
	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	}

	ctx := context.Background()
	key1 := "test-redis-a-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	key2 := "test-redis-b-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer client.Del(ctx, ratelimitKeyPrefix+key1, ratelimitKeyPrefix+key2)

	if allowed, _ := store.Allow(ctx, key1, config); !allowed {
		t.Error("first request for key1 should be allowed")
	}
	if allowed, _ := store.Allow(ctx, key2, config); !allowed {
		t.Error("first request for key2 should be allowed")
	}
	if allowed, _ := store.Allow(ctx, key1, config); allowed {
		t.Error("second request for key1 should be blocked")
	}
}

func TestRedisRateLimitStore_FailOpen(t *testing.T) {
	// A client pointed at a closed port must fail open.
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 100 * time.Millisecond,
	})
	defer client.Close()

	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	}

	for i := 0; i < 3; i++ {
		allowed, _ := store.Allow(context.Background(), "any-key", config)
		if !allowed {
			t.Errorf("request %d: unreachable Redis must fail open", i+1)
		}
	}
}
