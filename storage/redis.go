package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV backs the cache with Redis. Every Redis error degrades to a cache
// miss so an unavailable Redis only costs extra database reads.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV creates a Redis-backed KV using the provided client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = r.client.Del(ctx, key).Err()
		}
		return nil, false
	}
	return data, true
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	_ = r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) DeletePrefix(ctx context.Context, prefix string) {
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	keys := []string{}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if iter.Err() != nil || len(keys) == 0 {
		return
	}
	_, _ = r.client.Del(ctx, keys...).Result()
}
