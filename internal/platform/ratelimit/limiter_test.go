// Copyright (c) 2026 MangaTrack. All rights reserved.

package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/ratelimit"
)

/*
TestMemoryLimiter_ExactWindow drives 150 sequential checks against a
limit of 100 and verifies the exact split: 100 allowed, 50 denied, and a
stored count of 150 (denied requests still count).
*/
func TestMemoryLimiter_ExactWindow(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0)
	ctx := context.Background()

	allowed, denied := 0, 0
	for i := 0; i < 150; i++ {
		result, err := limiter.Check(ctx, "user:42", 100, time.Minute)
		require.NoError(t, err)
		if result.Allowed {
			allowed++
		} else {
			denied++
		}
	}

	assert.Equal(t, 100, allowed)
	assert.Equal(t, 50, denied)
	assert.Equal(t, 150, limiter.Count("user:42"))
}

/*
TestMemoryLimiter_ConcurrentWindow repeats the exact-split property under
goroutine concurrency: the store lock must serialize increments so no
count++ race inflates the allowed number.
*/
func TestMemoryLimiter_ConcurrentWindow(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, _ := limiter.Check(ctx, "user:7", 100, time.Minute)
			if result.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed)
	assert.Equal(t, 150, limiter.Count("user:7"))
}

/*
TestMemoryLimiter_WindowReset verifies that an expired window starts a
fresh count instead of carrying the old one.
*/
func TestMemoryLimiter_WindowReset(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := limiter.Check(ctx, "user:9", 3, 20*time.Millisecond)
		require.NoError(t, err)
	}
	result, err := limiter.Check(ctx, "user:9", 3, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	time.Sleep(30 * time.Millisecond)

	result, err = limiter.Check(ctx, "user:9", 3, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, limiter.Count("user:9"))
}

/*
TestMemoryLimiter_BoundedKeys verifies LRU eviction keeps the tracked key
count at the configured cap.
*/
func TestMemoryLimiter_BoundedKeys(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(10)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		key := "ip:" + string(rune('a'+i))
		_, err := limiter.Check(ctx, key, 5, time.Minute)
		require.NoError(t, err)
	}

	assert.Equal(t, 10, limiter.Len())
	// The first key is long evicted; a re-check starts a fresh window.
	result, err := limiter.Check(ctx, "ip:a", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, limiter.Count("ip:a"))
}

/*
TestRedisLimiter_Window exercises the shared INCR+TTL window against an
embedded Redis.
*/
func TestRedisLimiter_Window(t *testing.T) {
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := ratelimit.NewRedisLimiter(client)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		result, err := limiter.Check(ctx, "login:kenji@mangatrack.app", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "call %d should pass", i)
		assert.Equal(t, 5-i, result.Remaining)
	}

	result, err := limiter.Check(ctx, "login:kenji@mangatrack.app", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)

	// A different key has an independent window.
	other, err := limiter.Check(ctx, "login:other@mangatrack.app", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	// After the window expires the counter restarts.
	mini.FastForward(61 * time.Second)
	result, err = limiter.Check(ctx, "login:kenji@mangatrack.app", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

/*
TestService_FallsBackWhenRedisDown points the primary at a dead address
and verifies the service still produces verdicts from the memory fallback.
*/
func TestService_FallsBackWhenRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1", // nothing listens here
		DialTimeout: 10 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	service := ratelimit.NewService(ratelimit.NewRedisLimiter(client))

	result := service.Check(context.Background(), "fallback-key", 2, time.Minute)
	assert.True(t, result.Allowed)
	result = service.Check(context.Background(), "fallback-key", 2, time.Minute)
	assert.True(t, result.Allowed)
	result = service.Check(context.Background(), "fallback-key", 2, time.Minute)
	assert.False(t, result.Allowed)
}

/*
TestResult_RetryAfterSeconds verifies rounding up and the floor of one second.
*/
func TestResult_RetryAfterSeconds(t *testing.T) {
	now := time.Now()

	result := ratelimit.Result{Reset: now.Add(90 * time.Second)}
	assert.Equal(t, 91, result.RetryAfterSeconds(now))

	expired := ratelimit.Result{Reset: now.Add(-time.Second)}
	assert.Equal(t, 1, expired.RetryAfterSeconds(now))
}
