package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims, counts and conditionally records a request
// atomically so replicas sharing one Redis agree on the count.
//
// KEYS[1] key; ARGV: now_ms, window_ms, limit, member.
// Returns {allowed, count, reset_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
redis.call('PEXPIRE', key, window)
return {allowed, count, reset}
`)

// RedisStore keeps request logs in Redis sorted sets scored by millisecond
// timestamps. Keys expire with their window, so no cleanup loop is needed.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	clock  Clock
}

func NewRedisStore(client redis.Cmdable, prefix string, clk Clock) *RedisStore {
	if clk == nil {
		clk = realClock{}
	}
	return &RedisStore{client: client, prefix: prefix, clock: clk}
}

func (s *RedisStore) Hit(ctx context.Context, key string, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	now := s.clock.Now()
	vals, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.redisKey(key)},
		now.UnixMilli(),
		cfg.Window.Milliseconds(),
		cfg.MaxRequests,
		fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("running sliding window script: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("unexpected sliding window reply length %d", len(vals))
	}

	allowed, count, resetMs := vals[0] == 1, int(vals[1]), vals[2]

	res := Result{
		At:      now,
		Success: allowed,
		Limit:   cfg.MaxRequests,
		Reset:   time.UnixMilli(resetMs),
	}
	if allowed {
		res.Remaining = cfg.MaxRequests - count
	}
	return res, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("deleting rate limit key: %w", err)
	}
	return nil
}

func (s *RedisStore) redisKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}
