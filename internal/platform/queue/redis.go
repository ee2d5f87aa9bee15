// Copyright (c) 2026 MangaTrack. All rights reserved.

package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
)

// Key layout per queue q:
//
//	queue:{q}:waiting  ZSET  member=jobID  score=priority*1e9+seq
//	queue:{q}:delayed  ZSET  member=jobID  score=runAt millis
//	queue:{q}:active   SET   member=jobID
//	queue:{q}:failed   ZSET  member=jobID  score=failedAt millis
//	queue:{q}:seq      counter for FIFO ordering within a priority band
//	queue:{q}:job:{id} HASH  payload, priority, attempts, maxattempts, lasterror
//
// The scripts below are the only writers, so every transition is atomic.

// enqueueScript coalesces on live duplicates, then replaces any terminal
// leftovers and queues the job either waiting or delayed.
const enqueueScript = `
if redis.call("zscore", KEYS[1], ARGV[1]) or redis.call("zscore", KEYS[2], ARGV[1]) or redis.call("sismember", KEYS[3], ARGV[1]) == 1 then
	return 0
end
redis.call("zrem", KEYS[5], ARGV[1])
redis.call("del", KEYS[4])
redis.call("hset", KEYS[4], "payload", ARGV[2], "priority", ARGV[3], "attempts", "0", "maxattempts", ARGV[4])
if tonumber(ARGV[5]) > tonumber(ARGV[6]) then
	redis.call("zadd", KEYS[2], ARGV[5], ARGV[1])
else
	local seq = redis.call("incr", KEYS[6])
	local score = tonumber(ARGV[3]) * 1e9 + seq
	redis.call("zadd", KEYS[1], string.format("%.0f", score), ARGV[1])
end
return 1
`

// dequeueScript promotes due delayed jobs into the waiting band, then pops
// the lowest score (highest priority, oldest) and activates it.
const dequeueScript = `
local due = redis.call("zrangebyscore", KEYS[2], "-inf", ARGV[1], "LIMIT", 0, 100)
for _, id in ipairs(due) do
	redis.call("zrem", KEYS[2], id)
	local priority = tonumber(redis.call("hget", ARGV[2] .. id, "priority") or "4")
	local seq = redis.call("incr", KEYS[4])
	local score = priority * 1e9 + seq
	redis.call("zadd", KEYS[1], string.format("%.0f", score), id)
end
local popped = redis.call("zpopmin", KEYS[1], 1)
if #popped == 0 then
	return false
end
local id = popped[1]
redis.call("sadd", KEYS[3], id)
local jobkey = ARGV[2] .. id
local attempts = redis.call("hincrby", jobkey, "attempts", 1)
return {id, redis.call("hget", jobkey, "payload"), attempts, redis.call("hget", jobkey, "maxattempts"), redis.call("hget", jobkey, "priority")}
`

// failScript deactivates the job and either schedules a retry or parks it
// terminally, reporting which branch was taken.
const failScript = `
redis.call("srem", KEYS[1], ARGV[1])
local jobkey = ARGV[5] .. ARGV[1]
redis.call("hset", jobkey, "lasterror", ARGV[2])
local attempts = tonumber(redis.call("hget", jobkey, "attempts") or "0")
local max = tonumber(redis.call("hget", jobkey, "maxattempts") or "1")
if tonumber(ARGV[6]) == 1 or attempts >= max then
	redis.call("zadd", KEYS[3], ARGV[4], ARGV[1])
	return 1
end
redis.call("zadd", KEYS[2], ARGV[3], ARGV[1])
return 0
`

// RedisQueue is the production [Queue] backed by a shared Redis.
type RedisQueue struct {
	client  *redis.Client
	enqueue *redis.Script
	dequeue *redis.Script
	fail    *redis.Script
}

// NewRedisQueue wraps an existing Redis client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		client:  client,
		enqueue: redis.NewScript(enqueueScript),
		dequeue: redis.NewScript(dequeueScript),
		fail:    redis.NewScript(failScript),
	}
}

// Enqueue implements [Queue].
func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) (bool, error) {
	if job.ID == "" || job.Queue == "" {
		return false, fmt.Errorf("queue: job needs id and queue")
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	now := time.Now()
	runAt := job.RunAt
	if runAt.IsZero() {
		runAt = now
	}

	added, err := q.enqueue.Run(ctx, q.client,
		[]string{q.waitingKey(job.Queue), q.delayedKey(job.Queue), q.activeKey(job.Queue), q.jobKey(job.Queue, job.ID), q.failedKey(job.Queue), q.seqKey(job.Queue)},
		job.ID, string(job.Payload), job.Priority, maxAttempts, runAt.UnixMilli(), now.UnixMilli(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("queue: enqueue %s/%s: %w", job.Queue, job.ID, err)
	}
	return added == 1, nil
}

// Dequeue implements [Queue].
func (q *RedisQueue) Dequeue(ctx context.Context, queue string) (*Job, error) {
	raw, err := q.dequeue.Run(ctx, q.client,
		[]string{q.waitingKey(queue), q.delayedKey(queue), q.activeKey(queue), q.seqKey(queue)},
		time.Now().UnixMilli(), q.jobKeyPrefix(queue),
	).Slice()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: dequeue %s: %w", queue, err)
	}
	if len(raw) < 5 {
		return nil, fmt.Errorf("queue: dequeue %s: malformed reply", queue)
	}

	job := &Job{
		ID:          toString(raw[0]),
		Queue:       queue,
		Payload:     []byte(toString(raw[1])),
		Attempts:    int(toInt(raw[2])),
		MaxAttempts: int(toInt(raw[3])),
		Priority:    int(toInt(raw[4])),
	}
	return job, nil
}

// Complete implements [Queue].
func (q *RedisQueue) Complete(ctx context.Context, queue, id string) error {
	pipe := q.client.TxPipeline()
	pipe.SRem(ctx, q.activeKey(queue), id)
	pipe.Del(ctx, q.jobKey(queue, id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: complete %s/%s: %w", queue, id, err)
	}
	return nil
}

// Fail implements [Queue].
func (q *RedisQueue) Fail(ctx context.Context, queue, id, errMsg string, retryAt time.Time) (bool, error) {
	return q.failWith(ctx, queue, id, errMsg, retryAt, false)
}

// FailPermanent parks the job terminally regardless of remaining attempts.
func (q *RedisQueue) FailPermanent(ctx context.Context, queue, id, errMsg string) error {
	_, err := q.failWith(ctx, queue, id, errMsg, time.Now(), true)
	return err
}

func (q *RedisQueue) failWith(ctx context.Context, queue, id, errMsg string, retryAt time.Time, force bool) (bool, error) {
	forceFlag := 0
	if force {
		forceFlag = 1
	}
	res, err := q.fail.Run(ctx, q.client,
		[]string{q.activeKey(queue), q.delayedKey(queue), q.failedKey(queue)},
		id, errMsg, retryAt.UnixMilli(), time.Now().UnixMilli(), q.jobKeyPrefix(queue), forceFlag,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("queue: fail %s/%s: %w", queue, id, err)
	}
	return res == 1, nil
}

// Counts implements [Queue].
func (q *RedisQueue) Counts(ctx context.Context, queue string) (Counts, error) {
	pipe := q.client.TxPipeline()
	waiting := pipe.ZCard(ctx, q.waitingKey(queue))
	delayed := pipe.ZCard(ctx, q.delayedKey(queue))
	active := pipe.SCard(ctx, q.activeKey(queue))
	failed := pipe.ZCard(ctx, q.failedKey(queue))
	if _, err := pipe.Exec(ctx); err != nil {
		return Counts{}, fmt.Errorf("queue: counts %s: %w", queue, err)
	}
	return Counts{
		Waiting: int(waiting.Val()),
		Delayed: int(delayed.Val()),
		Active:  int(active.Val()),
		Failed:  int(failed.Val()),
	}, nil
}

// State implements [Queue].
func (q *RedisQueue) State(ctx context.Context, queue, id string) (JobState, error) {
	pipe := q.client.TxPipeline()
	waiting := pipe.ZScore(ctx, q.waitingKey(queue), id)
	delayed := pipe.ZScore(ctx, q.delayedKey(queue), id)
	active := pipe.SIsMember(ctx, q.activeKey(queue), id)
	failed := pipe.ZScore(ctx, q.failedKey(queue), id)
	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return StateNone, fmt.Errorf("queue: state %s/%s: %w", queue, id, err)
	}

	switch {
	case active.Val():
		return StateActive, nil
	case waiting.Err() == nil:
		return StateWaiting, nil
	case delayed.Err() == nil:
		return StateDelayed, nil
	case failed.Err() == nil:
		return StateFailed, nil
	}
	return StateNone, nil
}

// Remove implements [Queue].
func (q *RedisQueue) Remove(ctx context.Context, queue, id string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.waitingKey(queue), id)
	pipe.ZRem(ctx, q.delayedKey(queue), id)
	pipe.SRem(ctx, q.activeKey(queue), id)
	pipe.ZRem(ctx, q.failedKey(queue), id)
	pipe.Del(ctx, q.jobKey(queue, id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: remove %s/%s: %w", queue, id, err)
	}
	return nil
}

// PruneFailed implements [Queue].
func (q *RedisQueue) PruneFailed(ctx context.Context, queue string, olderThan time.Time) (int, error) {
	cutoff := strconv.FormatInt(olderThan.UnixMilli(), 10)
	ids, err := q.client.ZRangeByScore(ctx, q.failedKey(queue), &redis.ZRangeBy{
		Min: "-inf",
		Max: cutoff,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: prune %s: %w", queue, err)
	}
	for _, id := range ids {
		if err := q.Remove(ctx, queue, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// # Key helpers

func (q *RedisQueue) waitingKey(queue string) string { return constants.RedisPrefixQueue + queue + ":waiting" }
func (q *RedisQueue) delayedKey(queue string) string { return constants.RedisPrefixQueue + queue + ":delayed" }
func (q *RedisQueue) activeKey(queue string) string  { return constants.RedisPrefixQueue + queue + ":active" }
func (q *RedisQueue) failedKey(queue string) string  { return constants.RedisPrefixQueue + queue + ":failed" }
func (q *RedisQueue) seqKey(queue string) string     { return constants.RedisPrefixQueue + queue + ":seq" }
func (q *RedisQueue) jobKeyPrefix(queue string) string {
	return constants.RedisPrefixQueue + queue + ":job:"
}
func (q *RedisQueue) jobKey(queue, id string) string { return q.jobKeyPrefix(queue) + id }

// # Reply coercion

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	case []byte:
		parsed, _ := strconv.ParseInt(string(n), 10, 64)
		return parsed
	default:
		return 0
	}
}
