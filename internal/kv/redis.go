package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis key prefix for relay-owned visitor state.
const keyPrefix = "convrelay:"

// RedisStore is the redis-backed Store for deployments where visitor state
// must survive process restarts. Client lifecycle is managed by the caller.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// SetMulti writes all pairs in one MSET so readers see either none or all of
// the values.
func (s *RedisStore) SetMulti(ctx context.Context, pairs map[string]string) error {
	if len(pairs) == 0 {
		return nil
	}
	args := make([]any, 0, len(pairs)*2)
	for k, v := range pairs {
		args = append(args, keyPrefix+k, v)
	}
	if err := s.client.MSet(ctx, args...).Err(); err != nil {
		return fmt.Errorf("redis mset: %w", err)
	}
	return nil
}
