package redisstate_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstate "github.com/swust-xl/CampusPartner-sub001/internal/infra/state/redis"
	"github.com/swust-xl/CampusPartner-sub001/internal/repository"
)

func TestRedisLock_AcquireRelease(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := redisstate.NewRedisLock(client, "")
	ctx := context.Background()

	lease, err := locker.TryAcquire(ctx, "capacity-sweep", "node-a", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "node-a", lease.Owner)
	assert.True(t, mr.Exists("lock:capacity-sweep"))

	_, err = locker.TryAcquire(ctx, "capacity-sweep", "node-b", 10*time.Second)
	assert.ErrorIs(t, err, repository.ErrLockUnavailable, "其他持有者不能获取未过期的锁")

	// 其他任务名互不影响
	_, err = locker.TryAcquire(ctx, "archival-sweep", "node-b", 10*time.Second)
	require.NoError(t, err)

	released, err := locker.Release(ctx, lease, 0)
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, mr.Exists("lock:capacity-sweep"))

	_, err = locker.TryAcquire(ctx, "capacity-sweep", "node-b", 10*time.Second)
	assert.NoError(t, err, "释放后其他节点应能获取")
}

func TestRedisLock_ReentrantExtends(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := redisstate.NewRedisLock(client, "")
	ctx := context.Background()

	_, err := locker.TryAcquire(ctx, "task", "node-a", 2*time.Second)
	require.NoError(t, err)
	mr.FastForward(time.Second)

	_, err = locker.TryAcquire(ctx, "task", "node-a", 5*time.Second)
	require.NoError(t, err, "同一持有者重复获取不应死锁")
	assert.Equal(t, 5*time.Second, mr.TTL("lock:task"))
}

func TestRedisLock_ExpiresAfterMaxHold(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := redisstate.NewRedisLock(client, "")
	ctx := context.Background()

	_, err := locker.TryAcquire(ctx, "task", "crashed-node", 3*time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	_, err = locker.TryAcquire(ctx, "task", "node-b", time.Second)
	assert.ErrorIs(t, err, repository.ErrLockUnavailable)

	mr.FastForward(2 * time.Second)
	_, err = locker.TryAcquire(ctx, "task", "node-b", time.Second)
	assert.NoError(t, err, "持有者崩溃后锁应在 maxHold 后自动释放")
}

func TestRedisLock_ReleaseKeepsMinHold(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := redisstate.NewRedisLock(client, "")
	ctx := context.Background()

	lease, err := locker.TryAcquire(ctx, "task", "node-a", 30*time.Second)
	require.NoError(t, err)

	released, err := locker.Release(ctx, lease, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, released)
	assert.True(t, mr.Exists("lock:task"), "minHold 未满时锁应继续存在")
	assert.LessOrEqual(t, mr.TTL("lock:task"), 5*time.Second)

	_, err = locker.TryAcquire(ctx, "task", "node-b", time.Second)
	assert.ErrorIs(t, err, repository.ErrLockUnavailable)

	mr.FastForward(5 * time.Second)
	_, err = locker.TryAcquire(ctx, "task", "node-b", time.Second)
	assert.NoError(t, err)
}

func TestRedisLock_ReleaseByNonHolder(t *testing.T) {
	_, client := newTestRedis(t)
	locker := redisstate.NewRedisLock(client, "")
	ctx := context.Background()

	lease, err := locker.TryAcquire(ctx, "task", "node-a", time.Minute)
	require.NoError(t, err)

	stolen := *lease
	stolen.Owner = "node-b"
	released, err := locker.Release(ctx, &stolen, 0)
	require.NoError(t, err)
	assert.False(t, released, "非持有者不能释放锁")

	_, err = locker.TryAcquire(ctx, "task", "node-b", time.Minute)
	assert.ErrorIs(t, err, repository.ErrLockUnavailable)
}

func TestRedisLock_ConcurrentAcquireExactlyOneWins(t *testing.T) {
	_, client := newTestRedis(t)
	locker := redisstate.NewRedisLock(client, "")
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := locker.TryAcquire(ctx, "task", fmt.Sprintf("node-%d", i), time.Minute)
			if err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
