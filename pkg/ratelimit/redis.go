package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// fixedWindowScript increments the counter and starts the window on the first hit.
// It returns the new count and the remaining TTL in milliseconds.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisStore shares fixed-window counters across instances through Redis
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed store. Keys are stored as "<prefix>:<key>".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *RedisStore) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

// Check implements Store
func (s *RedisStore) Check(ctx context.Context, key string, cfg Config) (Result, error) {
	windowMs := cfg.Window.Milliseconds()
	if windowMs <= 0 {
		windowMs = 1
	}

	raw, err := fixedWindowScript.Run(ctx, s.client, []string{s.redisKey(key)}, windowMs).Result()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit check: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return Result{}, fmt.Errorf("redis rate limit check: unexpected reply %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return Result{}, fmt.Errorf("redis rate limit check: unexpected count %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return Result{}, fmt.Errorf("redis rate limit check: unexpected ttl %T", values[1])
	}

	reset := s.now().Add(time.Duration(ttlMs) * time.Millisecond)
	return resultFor(int(count), cfg, reset), nil
}

// Reset clears the counter for a key
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.redisKey(key)).Err()
}

// Ping checks connectivity to Redis
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
