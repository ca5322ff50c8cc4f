package kv

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis instance, for deployments where the
// cache layer runs server-side instead of on a device.
type Redis struct {
	client *redis.Client
	maxTTL time.Duration
}

var _ Store = (*Redis)(nil)

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithRedisMaxTTL sets a key expiry applied on every Set so abandoned
// entries cannot accumulate. It should comfortably exceed the longest
// hard TTL layered on top of the store.
func WithRedisMaxTTL(d time.Duration) RedisOption {
	return func(r *Redis) {
		r.maxTTL = d
	}
}

// NewRedis returns a Redis-backed Store. The caller owns the redis.Client
// lifecycle; Close does not close the client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, r.maxTTL).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Close is a no-op. The caller owns the redis.Client lifecycle.
func (r *Redis) Close() error {
	return nil
}
