package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// GormUserRepository 是 UserDirectory 接口的 GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository 创建 GormUserRepository 实例
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	if db == nil {
		panic("database connection cannot be nil for GormUserRepository")
	}
	return &GormUserRepository{db: db}
}

// FindContacts 批量查询成员手机号，未登记手机号的用户不出现在结果中
func (r *GormUserRepository) FindContacts(ctx context.Context, openIDs []string) (map[string]string, error) {
	contacts := make(map[string]string, len(openIDs))
	if len(openIDs) == 0 {
		return contacts, nil // 避免空的 IN 查询
	}
	var users []UserRecord
	err := r.db.WithContext(ctx).
		Select("open_id", "phone").
		Where("open_id IN ?", openIDs).
		Where("phone <> ?", "").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find contacts for %d users: %w", len(openIDs), err)
	}
	for _, u := range users {
		contacts[u.OpenID] = u.Phone
	}
	return contacts, nil
}
