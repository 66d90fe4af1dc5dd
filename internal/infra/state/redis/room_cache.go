package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
	"github.com/swust-xl/CampusPartner-sub001/internal/repository"
)

const (
	defaultMutateRetries = 64
	scanCount            = 500
	mgetBatch            = 200
)

// RedisRoomCache 是 RoomCache 接口的 Redis 实现
type RedisRoomCache struct {
	client        *redis.Client
	keyPrefix     string
	mutateRetries int
}

// NewRedisRoomCache 创建 RedisRoomCache 实例
func NewRedisRoomCache(client *redis.Client, keyPrefix string) *RedisRoomCache {
	if client == nil {
		panic("redis client cannot be nil for RedisRoomCache")
	}
	return &RedisRoomCache{
		client:        client,
		keyPrefix:     keyPrefix,
		mutateRetries: defaultMutateRetries,
	}
}

// Get 获取单个房间
func (r *RedisRoomCache) Get(ctx context.Context, id string) (*domain.Room, error) {
	key := roomKey(r.keyPrefix, id)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("redis: failed to get room %s from %s: %w", id, key, err)
	}
	var room domain.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal room %s from %s: %w", id, key, err)
	}
	return &room, nil
}

// MultiGet 用 SCAN + MGET 读取全部房间。
// 扫描与读取之间被删除的 key 会被跳过，无法解析的值记录日志后跳过。
func (r *RedisRoomCache) MultiGet(ctx context.Context) ([]domain.Room, error) {
	pattern := roomKeyPattern(r.keyPrefix)
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	iter := r.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if _, ok := seen[key]; ok {
			continue // SCAN 可能返回重复 key
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: failed to scan rooms with pattern %s: %w", pattern, err)
	}

	rooms := make([]domain.Room, 0, len(keys))
	for start := 0; start < len(keys); start += mgetBatch {
		end := start + mgetBatch
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]
		vals, err := r.client.MGet(ctx, batch...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: failed to mget %d rooms: %w", len(batch), err)
		}
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				continue
			}
			var room domain.Room
			if err := json.Unmarshal([]byte(s), &room); err != nil {
				logrus.WithField("key", batch[i]).WithError(err).Warn("redis: skipping undecodable room in multiget")
				continue
			}
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}

// Upsert 写入或覆盖房间 (不过期)
func (r *RedisRoomCache) Upsert(ctx context.Context, room *domain.Room) error {
	key := roomKey(r.keyPrefix, room.ID)
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal room %s: %w", room.ID, err)
	}
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: failed to set room %s on key %s: %w", room.ID, key, err)
	}
	return nil
}

// Delete 删除房间，幂等
func (r *RedisRoomCache) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roomKey(r.keyPrefix, id)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete %d rooms: %w", len(keys), err)
	}
	return nil
}

// Mutate 使用 WATCH/MULTI/EXEC 实现单个房间的 CAS 读-改-写。
func (r *RedisRoomCache) Mutate(ctx context.Context, id string, fn repository.MutateFunc) (*domain.Room, error) {
	key := roomKey(r.keyPrefix, id)
	var result *domain.Room

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return repository.ErrRoomNotFound
			}
			return fmt.Errorf("redis: failed to get room %s for mutate: %w", id, err)
		}
		var room domain.Room
		if err := json.Unmarshal(raw, &room); err != nil {
			return fmt.Errorf("redis: failed to unmarshal room %s for mutate: %w", id, err)
		}

		changed, err := fn(&room)
		if err != nil {
			return err
		}
		if !changed {
			result = &room
			return nil
		}

		room.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(&room)
		if err != nil {
			return fmt.Errorf("redis: failed to marshal room %s for mutate: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = &room
		return nil
	}

	for attempt := 0; attempt < r.mutateRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			logrus.WithFields(logrus.Fields{"room_id": id, "attempt": attempt + 1}).Debug("redis: room changed during mutate, retrying")
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("redis: mutate room %s after %d attempts: %w", id, r.mutateRetries, repository.ErrConflict)
}
