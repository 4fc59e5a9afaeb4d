package store

import (
	"context"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "stockscan:"

// RedisSnapshots is a Snapshots backed by Redis; SET replaces the whole
// payload so writes are atomic, and keys carry no TTL.
type RedisSnapshots struct {
	client *redis.Client
}

func NewRedisSnapshots(addr string) *RedisSnapshots {
	return &RedisSnapshots{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (s *RedisSnapshots) Close() error { return s.client.Close() }

func (s *RedisSnapshots) Read(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *RedisSnapshots) Write(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, redisKeyPrefix+key, data, 0).Err()
}
