package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "filevault:ratelimit:"

// fixedWindowScript increments a hash {count, start} and restarts it when the
// window has elapsed. Redis expires the key when the window ends.
var fixedWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local start = tonumber(redis.call('HGET', KEYS[1], 'start'))
if start == nil or now - start >= window then
	redis.call('HSET', KEYS[1], 'count', 1, 'start', ARGV[1])
	redis.call('PEXPIRE', KEYS[1], window)
	return {1, now}
end
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {count, start}
`)

// RedisStore shares counters between every instance pointed at the same
// Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisClient parses url and pings the server before returning.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Counter, error) {
	vals, err := fixedWindowScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		now.UnixMilli(), window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Counter{}, err
	}
	if len(vals) != 2 {
		return Counter{}, fmt.Errorf("unexpected rate limit script reply: %v", vals)
	}
	return Counter{Count: vals[0], WindowStart: time.UnixMilli(vals[1])}, nil
}

// Sweep is a no-op; Redis expires keys itself.
func (s *RedisStore) Sweep(context.Context, time.Time) (int64, error) {
	return 0, nil
}
