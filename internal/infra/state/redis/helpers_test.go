package redisstate_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
)

// newTestRedis 启动一个 miniredis 并返回连接它的客户端
func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newRoom(id string, max int, members ...string) *domain.Room {
	return &domain.Room{
		ID:           id,
		OwnerID:      "owner",
		Tag:          "study",
		MaxMemberNum: max,
		Members:      append([]string{}, members...),
		Status:       domain.RoomOpen,
		CreatedAt:    time.Now().UTC(),
	}
}
