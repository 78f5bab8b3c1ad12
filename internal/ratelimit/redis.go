package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript applies the same rules as MemoryLimiter inside Redis so
// the read-modify-write is atomic across instances.  The key's TTL is the
// window, so Redis expires lapsed windows on its own.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])

	local count = tonumber(redis.call('GET', key))
	if count == nil then
		redis.call('SET', key, 1, 'PX', window_ms)
		local remaining = limit - 1
		if remaining < 0 then remaining = 0 end
		local allowed = 0
		if limit > 0 then allowed = 1 end
		return { allowed, remaining, window_ms }
	end

	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		ttl = window_ms
		redis.call('PEXPIRE', key, window_ms)
	end
	if count >= limit then
		return { 0, 0, ttl }
	end
	count = redis.call('INCR', key)
	return { 1, limit - count, ttl }
`)

// RedisLimiter is a Limiter whose counters live in Redis.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{rdb: rdb, prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, win time.Duration) (Result, error) {
	vals, err := fixedWindowScript.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, limit, win.Milliseconds()).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis script: %w", err)
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return Result{}, fmt.Errorf("ratelimit: unexpected script result %#v", vals)
	}
	return Result{
		Allowed:   asInt64(arr[0]) == 1,
		Remaining: int(asInt64(arr[1])),
		ResetAt:   l.now().Add(time.Duration(asInt64(arr[2])) * time.Millisecond),
	}, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
