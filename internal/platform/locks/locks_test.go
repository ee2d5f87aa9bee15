// Copyright (c) 2026 MangaTrack. All rights reserved.

package locks_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/locks"
)

func newLocker(t *testing.T) (*locks.Locker, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return locks.NewLocker(client), mini
}

/*
TestLocker_AcquireRelease covers the basic mutual-exclusion contract:
a held lock blocks other acquirers until released.
*/
func TestLocker_AcquireRelease(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()

	token, acquired, err := locker.Acquire(ctx, "fanout:series-1:ch-3", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
	require.NotEmpty(t, token)

	_, second, err := locker.Acquire(ctx, "fanout:series-1:ch-3", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)

	require.NoError(t, locker.Release(ctx, "fanout:series-1:ch-3", token))

	_, third, err := locker.Acquire(ctx, "fanout:series-1:ch-3", time.Minute)
	require.NoError(t, err)
	assert.True(t, third)
}

/*
TestLocker_ReleaseRequiresToken verifies a stale holder cannot free a lock
that has moved to a new owner.
*/
func TestLocker_ReleaseRequiresToken(t *testing.T) {
	locker, mini := newLocker(t)
	ctx := context.Background()

	staleToken, acquired, err := locker.Acquire(ctx, "job:sync-42", 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	// The lease expires and another owner takes over.
	mini.FastForward(100 * time.Millisecond)
	newToken, acquired, err := locker.Acquire(ctx, "job:sync-42", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	// The stale release must be a no-op.
	require.NoError(t, locker.Release(ctx, "job:sync-42", staleToken))
	owner, err := locker.Owner(ctx, "job:sync-42")
	require.NoError(t, err)
	assert.Equal(t, newToken, owner)
}

/*
TestLocker_Renew verifies renewal succeeds for the holder and fails for
anyone else.
*/
func TestLocker_Renew(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()

	token, acquired, err := locker.Acquire(ctx, "lease:sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	renewed, err := locker.Renew(ctx, "lease:sweep", token, time.Minute)
	require.NoError(t, err)
	assert.True(t, renewed)

	renewed, err = locker.Renew(ctx, "lease:sweep", "not-the-owner", time.Minute)
	require.NoError(t, err)
	assert.False(t, renewed)
}

/*
TestElector_SingleLeader runs two electors against one Redis and verifies
exactly one of them leads, with handover after the leader stops.
*/
func TestElector_SingleLeader(t *testing.T) {
	locker, _ := newLocker(t)
	logger := slog.New(slog.DiscardHandler)

	first := locks.NewElector(locker, "sweep", "node-a", 150*time.Millisecond, logger)
	second := locks.NewElector(locker, "sweep", "node-b", 150*time.Millisecond, logger)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	secondCtx, cancelSecond := context.WithCancel(context.Background())
	defer cancelSecond()

	go first.Run(firstCtx)
	require.Eventually(t, first.IsLeader, time.Second, 10*time.Millisecond)

	go second.Run(secondCtx)
	time.Sleep(200 * time.Millisecond)
	assert.True(t, first.IsLeader())
	assert.False(t, second.IsLeader())

	// Clean shutdown releases the lease; the follower takes over.
	cancelFirst()
	require.Eventually(t, second.IsLeader, 2*time.Second, 10*time.Millisecond)
}
