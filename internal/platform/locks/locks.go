// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package locks provides distributed mutual exclusion on top of Redis.

Two primitives are exposed:

  - Locker: a token-fenced SETNX lock for short critical sections
    (coalesce windows, one-shot jobs).
  - Elector: a lease-renewal loop that keeps exactly one instance acting
    as the periodic-sweep leader.

Release and renew are compare-and-act Lua scripts so a slow holder can
never delete or extend a lock that has since moved to another owner.
*/
package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/uuidv7"
)

// releaseScript deletes the lock only while we still own it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// renewScript extends the TTL only while we still own the lock.
const renewScript = `
local val = redis.call("get", KEYS[1])
if not val then
	return -1
end
if val == ARGV[1] then
	return redis.call("pexpire", KEYS[1], tonumber(ARGV[2]))
end
return -2
`

// Locker issues token-fenced locks backed by Redis.
type Locker struct {
	client  *redis.Client
	release *redis.Script
	renew   *redis.Script
}

// NewLocker wraps an existing Redis client.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{
		client:  client,
		release: redis.NewScript(releaseScript),
		renew:   redis.NewScript(renewScript),
	}
}

// Acquire attempts to take the named lock for ttl.
//
// # Returns
//   - token: the fencing value to pass to Release/Renew; empty when not acquired.
//   - acquired: false when another owner holds the lock.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuidv7.New()
	ok, err := l.client.SetNX(ctx, l.key(name), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("locks: acquire %q: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the named lock if token still owns it. Releasing a lock
// that expired or changed hands is a no-op, not an error.
func (l *Locker) Release(ctx context.Context, name, token string) error {
	if err := l.release.Run(ctx, l.client, []string{l.key(name)}, token).Err(); err != nil {
		return fmt.Errorf("locks: release %q: %w", name, err)
	}
	return nil
}

// Renew extends the named lock's TTL if token still owns it.
func (l *Locker) Renew(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	res, err := l.renew.Run(ctx, l.client, []string{l.key(name)}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("locks: renew %q: %w", name, err)
	}
	return res == 1, nil
}

// Owner reports the current holder token of the named lock, empty when free.
func (l *Locker) Owner(ctx context.Context, name string) (string, error) {
	val, err := l.client.Get(ctx, l.key(name)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("locks: owner %q: %w", name, err)
	}
	return val, nil
}

func (l *Locker) key(name string) string {
	return constants.RedisPrefixLock + name
}
