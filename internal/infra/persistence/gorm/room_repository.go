package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
	"github.com/swust-xl/CampusPartner-sub001/internal/query"
	"github.com/swust-xl/CampusPartner-sub001/internal/repository"
)

// 冲突更新时保留首次写入的值，重复归档不改变已存储的行
var preservedOnConflict = map[string]struct{}{
	"id":          {},
	"created_at":  {},
	"archived_at": {},
}

// GormRoomRepository 是 RoomStore 接口的 GORM 实现
type GormRoomRepository struct {
	db      *gorm.DB
	columns map[string]struct{} // rooms 表的合法列名，用于校验查询字段
	upsert  clause.OnConflict   // Create 变为 INSERT ... ON DUPLICATE KEY UPDATE
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	s, err := schema.Parse(&RoomRecord{}, &sync.Map{}, db.NamingStrategy)
	if err != nil {
		panic(fmt.Sprintf("gorm: parse RoomRecord schema: %v", err))
	}
	columns := make(map[string]struct{}, len(s.DBNames))
	updates := make([]string, 0, len(s.DBNames))
	for _, name := range s.DBNames {
		columns[name] = struct{}{}
		if _, keep := preservedOnConflict[name]; !keep {
			updates = append(updates, name)
		}
	}
	return &GormRoomRepository{
		db:      db,
		columns: columns,
		upsert: clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(updates),
		},
	}
}

// Save 按 ID upsert，重复归档是安全的。
// archived_at 只在首次写入时设置，重复写入同一房间得到相同的行。
func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	rec := toRoomRecord(room, time.Now().UTC())
	err := r.db.WithContext(ctx).Clauses(r.upsert).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("gorm: upsert room %s: %w", room.ID, err)
	}
	return nil
}

// FindByID 实现根据房间 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var rec RoomRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %s: %w", id, err)
	}
	room := toDomainRoom(&rec)
	return &room, nil
}

// Query 按已解析的查询条件列出房间
func (r *GormRoomRepository) Query(ctx context.Context, q query.RoomQuery) ([]domain.Room, error) {
	tx, err := r.buildQuery(r.db.WithContext(ctx), q)
	if err != nil {
		return nil, err
	}
	var recs []RoomRecord
	if err := tx.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("gorm: query rooms: %w", err)
	}
	return toDomainRooms(recs), nil
}

// Search 基于 FULLTEXT(tag, content) 的全文检索
func (r *GormRoomRepository) Search(ctx context.Context, keyword string, page query.Page) ([]domain.Room, error) {
	var recs []RoomRecord
	err := r.searchQuery(r.db.WithContext(ctx), keyword, page).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: search rooms by %q: %w", keyword, err)
	}
	return toDomainRooms(recs), nil
}

func (r *GormRoomRepository) searchQuery(tx *gorm.DB, keyword string, page query.Page) *gorm.DB {
	return tx.Model(&RoomRecord{}).
		Where("MATCH(tag, content) AGAINST (? IN NATURAL LANGUAGE MODE)", keyword).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).
		Offset(page.Offset).
		Limit(page.Limit)
}

func (r *GormRoomRepository) buildQuery(tx *gorm.DB, q query.RoomQuery) (*gorm.DB, error) {
	tx = tx.Model(&RoomRecord{})

	if len(q.Fields) > 0 {
		cols := make([]string, 0, len(q.Fields))
		for _, f := range q.Fields {
			col, err := r.column(f)
			if err != nil {
				return nil, err
			}
			cols = append(cols, col)
		}
		tx = tx.Select(cols)
	}

	if len(q.Filters) > 0 {
		exprs := make([]clause.Expression, 0, len(q.Filters))
		for _, f := range q.Filters {
			col, err := r.column(f.Key)
			if err != nil {
				return nil, err
			}
			expr, err := filterExpr(clause.Column{Name: col}, f)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, expr)
		}
		tx = tx.Clauses(clause.Where{Exprs: exprs})
	}

	for _, s := range q.Sorts {
		col, err := r.column(s.Key)
		if err != nil {
			return nil, err
		}
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: s.Desc})
	}

	return tx.Offset(q.Page.Offset).Limit(q.Page.Limit), nil
}

// column 将 camelCase / snake_case 标识符转换为列名并校验其存在
func (r *GormRoomRepository) column(key string) (string, error) {
	name := r.db.NamingStrategy.ColumnName("", key)
	if _, ok := r.columns[name]; !ok {
		return "", fmt.Errorf("%w: unknown field %q", repository.ErrInvalidQuery, key)
	}
	return name, nil
}

func filterExpr(col clause.Column, f query.Filter) (clause.Expression, error) {
	switch f.Op {
	case query.OpEq:
		return clause.Eq{Column: col, Value: f.Value}, nil
	case query.OpNe:
		return clause.Neq{Column: col, Value: f.Value}, nil
	case query.OpGt:
		return clause.Gt{Column: col, Value: f.Value}, nil
	case query.OpGte:
		return clause.Gte{Column: col, Value: f.Value}, nil
	case query.OpLt:
		return clause.Lt{Column: col, Value: f.Value}, nil
	case query.OpLte:
		return clause.Lte{Column: col, Value: f.Value}, nil
	}
	return nil, fmt.Errorf("%w: unsupported operator %q", repository.ErrInvalidQuery, f.Op)
}

func toDomainRooms(recs []RoomRecord) []domain.Room {
	rooms := make([]domain.Room, 0, len(recs))
	for i := range recs {
		rooms = append(rooms, toDomainRoom(&recs[i]))
	}
	return rooms
}
