package repository

import (
	"context"
	"time"
)

// Lease 表示一次成功获取的分布式锁。
type Lease struct {
	Name       string
	Owner      string
	AcquiredAt time.Time
	ExpiresAt  time.Time // 仅供参考，真正的过期由存储端 TTL 保证
}

// DistributedLock 是集群范围内按任务名互斥的锁。
type DistributedLock interface {
	// TryAcquire 非阻塞获取锁。被他人持有时返回 ErrLockUnavailable；
	// 同一 owner 重复获取会把过期时间延长到 maxHold。
	TryAcquire(ctx context.Context, name, owner string, maxHold time.Duration) (*Lease, error)

	// Release 释放锁。minHold 未满时不删除，而是把剩余 TTL 缩短到 minHold 结束。
	// 锁已过期或已被他人持有时返回 false。
	Release(ctx context.Context, lease *Lease, minHold time.Duration) (bool, error)
}
