package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
	"github.com/swust-xl/CampusPartner-sub001/internal/repository"
)

// RedisSessionCache 是 SessionCache 接口的 Redis 实现
type RedisSessionCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisSessionCache 创建 RedisSessionCache 实例
func NewRedisSessionCache(client *redis.Client, keyPrefix string) *RedisSessionCache {
	if client == nil {
		panic("redis client cannot be nil for RedisSessionCache")
	}
	return &RedisSessionCache{client: client, keyPrefix: keyPrefix}
}

func (r *RedisSessionCache) Get(ctx context.Context, openID string) (*domain.Session, error) {
	key := sessionKey(r.keyPrefix, openID)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis: failed to get session from %s: %w", key, err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal session from %s: %w", key, err)
	}
	return &session, nil
}

func (r *RedisSessionCache) Put(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	key := sessionKey(r.keyPrefix, session.OpenID)
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal session %s: %w", session.OpenID, err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to set session on key %s: %w", key, err)
	}
	return nil
}

func (r *RedisSessionCache) Touch(ctx context.Context, openID string, ttl time.Duration) error {
	key := sessionKey(r.keyPrefix, openID)
	ok, err := r.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: failed to touch session on key %s: %w", key, err)
	}
	if !ok {
		return repository.ErrSessionNotFound
	}
	return nil
}
