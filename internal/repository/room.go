package repository

import (
	"context"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
	"github.com/swust-xl/CampusPartner-sub001/internal/query"
)

// MutateFunc 在 CAS 事务内修改房间。
// 返回 changed=false 或 error 时不会写回缓存。
type MutateFunc func(room *domain.Room) (changed bool, err error)

// RoomCache 定义了房间实时状态的缓存操作，通常由 Redis 实现。
// key 形如 "Room:<id>"。
type RoomCache interface {
	// Get 获取单个房间，不存在时返回 ErrNotFound。
	Get(ctx context.Context, id string) (*domain.Room, error)

	// MultiGet 扫描缓存中的全部房间 (无分页，供定时任务使用)。
	MultiGet(ctx context.Context) ([]domain.Room, error)

	// Upsert 写入或覆盖房间，后写者胜出，无版本检查。
	Upsert(ctx context.Context, room *domain.Room) error

	// Delete 删除房间，删除不存在的 key 不是错误。
	Delete(ctx context.Context, ids ...string) error

	// Mutate 以乐观锁方式执行 读-改-写。
	// key 不存在时返回 ErrNotFound 且绝不重新插入；重试耗尽返回 ErrConflict。
	Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Room, error)
}

// RoomStore 定义了房间归档后的持久化存储操作 (MySQL)。
type RoomStore interface {
	// Save 按 ID upsert，重复写入同一房间是安全的。
	Save(ctx context.Context, room *domain.Room) error

	// FindByID 按 ID 查找，不存在时返回 ErrNotFound。
	FindByID(ctx context.Context, id string) (*domain.Room, error)

	// Query 按字段选择 / 过滤 / 排序 / 分页查询。
	Query(ctx context.Context, q query.RoomQuery) ([]domain.Room, error)

	// Search 全文检索 tag 与 content。
	Search(ctx context.Context, keyword string, page query.Page) ([]domain.Room, error)
}
