package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	redis  *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client, prefix: "compugear:pending_registration"}
}

func (s *RedisStore) Put(ctx context.Context, id string, reg PendingRegistration, ttl time.Duration) error {
	payload, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, s.key(id), payload, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*PendingRegistration, error) {
	result, err := s.redis.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var reg PendingRegistration
	if err := json.Unmarshal([]byte(result), &reg); err != nil {
		return nil, fmt.Errorf("decode pending registration: %w", err)
	}
	return &reg, nil
}

func (s *RedisStore) Remove(ctx context.Context, id string) error {
	return s.redis.Del(ctx, s.key(id)).Err()
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}
