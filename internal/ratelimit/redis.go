package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow keeps one sorted-set member per admitted request, scored by
// its millisecond timestamp.
//
// KEYS[1] window key; ARGV now_ms, interval_ms, max, member.
// Returns {allowed, count, anchor_ms} where anchor is the oldest surviving
// timestamp on rejection and now on admission.
var slidingWindow = redis.NewScript(`
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - interval)
local count = redis.call('ZCARD', KEYS[1])
if count >= max then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  return {0, count, tonumber(oldest[2])}
end

redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], interval)
return {1, count + 1, now}
`)

// RedisLimiter shares windows across instances through Redis. Keys expire
// on their own, so it needs no sweep.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client redis.Scripter, prefix string, now func() time.Time) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{client: client, prefix: prefix, now: now}
}

func (r *RedisLimiter) Check(ctx context.Context, p Policy, client string) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{Allowed: true}, err
	}

	now := r.now()
	res, err := slidingWindow.Run(ctx, r.client,
		[]string{r.prefix + p.key(client)},
		now.UnixMilli(), p.Interval.Milliseconds(), p.Max, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Result{Allowed: true}, fmt.Errorf("ratelimit redis: %w", err)
	}
	if len(res) != 3 {
		return Result{Allowed: true}, fmt.Errorf("ratelimit redis: unexpected reply %v", res)
	}

	anchor := time.UnixMilli(res[2])
	if res[0] == 0 {
		return Result{Allowed: false, Limit: p.Max, Remaining: 0, ResetAt: anchor.Add(p.Interval)}, nil
	}
	return Result{
		Allowed:   true,
		Limit:     p.Max,
		Remaining: p.Max - int(res[1]),
		ResetAt:   anchor.Add(p.Interval),
	}, nil
}
