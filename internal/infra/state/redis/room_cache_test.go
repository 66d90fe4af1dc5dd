package redisstate_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
	redisstate "github.com/swust-xl/CampusPartner-sub001/internal/infra/state/redis"
	"github.com/swust-xl/CampusPartner-sub001/internal/repository"
)

func TestRedisRoomCache_UpsertGetDelete(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := redisstate.NewRedisRoomCache(client, "")
	ctx := context.Background()

	_, err := cache.Get(ctx, "r1")
	assert.ErrorIs(t, err, repository.ErrNotFound, "不存在的房间应返回 ErrNotFound")

	require.NoError(t, cache.Upsert(ctx, newRoom("r1", 3, "a")))
	assert.True(t, mr.Exists("Room:r1"), "key 格式应为 <EntityType>:<id>")

	got, err := cache.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Members)
	assert.Equal(t, domain.RoomOpen, got.Status)

	require.NoError(t, cache.Delete(ctx, "r1"))
	require.NoError(t, cache.Delete(ctx, "r1"), "重复删除不应报错")
	require.NoError(t, cache.Delete(ctx))
	assert.False(t, mr.Exists("Room:r1"))
}

func TestRedisRoomCache_KeyPrefix(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := redisstate.NewRedisRoomCache(client, "cp:")

	require.NoError(t, cache.Upsert(context.Background(), newRoom("r1", 2)))
	assert.True(t, mr.Exists("cp:Room:r1"))
}

func TestRedisRoomCache_MultiGet(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := redisstate.NewRedisRoomCache(client, "")
	ctx := context.Background()

	for i := 0; i < 450; i++ {
		require.NoError(t, cache.Upsert(ctx, newRoom(fmt.Sprintf("r%03d", i), 2)))
	}
	// 其他实体类型与无法解析的值都不应出现在结果中
	require.NoError(t, mr.Set("Session:u1", `{"open_id":"u1"}`))
	require.NoError(t, mr.Set("Room:broken", "not-json"))

	rooms, err := cache.MultiGet(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 450)

	empty, err := redisstate.NewRedisRoomCache(client, "other:").MultiGet(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRedisRoomCache_Mutate(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := redisstate.NewRedisRoomCache(client, "")
	ctx := context.Background()

	t.Run("missing key is never inserted", func(t *testing.T) {
		called := false
		_, err := cache.Mutate(ctx, "ghost", func(room *domain.Room) (bool, error) {
			called = true
			return true, nil
		})
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.False(t, called)
		assert.False(t, mr.Exists("Room:ghost"))
	})

	require.NoError(t, cache.Upsert(ctx, newRoom("r1", 5)))

	t.Run("fn error aborts write", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := cache.Mutate(ctx, "r1", func(room *domain.Room) (bool, error) {
			room.AddMember("x")
			return true, boom
		})
		assert.ErrorIs(t, err, boom)
		got, err := cache.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Empty(t, got.Members)
	})

	t.Run("unchanged skips write", func(t *testing.T) {
		before, _ := mr.Get("Room:r1")
		room, err := cache.Mutate(ctx, "r1", func(room *domain.Room) (bool, error) {
			return false, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "r1", room.ID)
		after, _ := mr.Get("Room:r1")
		assert.Equal(t, before, after)
	})

	t.Run("concurrent mutations are serialized", func(t *testing.T) {
		require.NoError(t, cache.Upsert(ctx, newRoom("busy", 100)))
		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := cache.Mutate(ctx, "busy", func(room *domain.Room) (bool, error) {
					return room.AddMember(fmt.Sprintf("u%d", i)), nil
				})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
		got, err := cache.Get(ctx, "busy")
		require.NoError(t, err)
		assert.Len(t, got.Members, n, "并发写入不应丢失更新")
	})
}
