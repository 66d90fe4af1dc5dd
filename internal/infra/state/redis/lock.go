package redisstate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/swust-xl/CampusPartner-sub001/internal/repository"
)

// acquireScript: 空闲则 SET PX；当前持有者重复获取则续期；否则返回 0。
var acquireScript = redis.NewScript(`
local holder = redis.call('GET', KEYS[1])
if not holder then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return 1
end
if holder == ARGV[1] then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	return 1
end
return 0
`)

// releaseScript: 仅持有者可释放；ARGV[2] > 0 时保留剩余的最短持有时间。
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
	return 0
end
local keep = tonumber(ARGV[2])
if keep > 0 then
	redis.call('PEXPIRE', KEYS[1], keep)
else
	redis.call('DEL', KEYS[1])
end
return 1
`)

// RedisLock 是 DistributedLock 接口的 Redis 实现，过期由 key 的 TTL 保证。
type RedisLock struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// NewRedisLock 创建 RedisLock 实例
func NewRedisLock(client *redis.Client, keyPrefix string) *RedisLock {
	if client == nil {
		panic("redis client cannot be nil for RedisLock")
	}
	return &RedisLock{client: client, keyPrefix: keyPrefix, now: time.Now}
}

// TryAcquire 非阻塞地尝试获取锁
func (l *RedisLock) TryAcquire(ctx context.Context, name, owner string, maxHold time.Duration) (*repository.Lease, error) {
	if maxHold < time.Millisecond {
		return nil, fmt.Errorf("redis: lock %s: maxHold must be at least 1ms, got %s", name, maxHold)
	}
	key := lockKey(l.keyPrefix, name)
	acquiredAt := l.now()
	res, err := acquireScript.Run(ctx, l.client, []string{key}, owner, maxHold.Milliseconds()).Int()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to acquire lock %s: %w", key, err)
	}
	if res == 0 {
		return nil, repository.ErrLockUnavailable
	}
	return &repository.Lease{
		Name:       name,
		Owner:      owner,
		AcquiredAt: acquiredAt,
		ExpiresAt:  acquiredAt.Add(maxHold),
	}, nil
}

// Release 释放锁，minHold 未满时仅缩短 TTL
func (l *RedisLock) Release(ctx context.Context, lease *repository.Lease, minHold time.Duration) (bool, error) {
	key := lockKey(l.keyPrefix, lease.Name)
	keep := minHold - l.now().Sub(lease.AcquiredAt)
	keepMs := keep.Milliseconds()
	if keepMs < 0 {
		keepMs = 0
	}
	res, err := releaseScript.Run(ctx, l.client, []string{key}, lease.Owner, keepMs).Int()
	if err != nil {
		return false, fmt.Errorf("redis: failed to release lock %s: %w", key, err)
	}
	return res == 1, nil
}
