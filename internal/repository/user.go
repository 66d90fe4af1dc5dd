package repository

import (
	"context"
	"time"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
)

// UserDirectory 提供用户联系方式查询 (满员通知时使用)。
type UserDirectory interface {
	// FindContacts 返回 openID -> 手机号，没有手机号的用户不会出现在结果中。
	FindContacts(ctx context.Context, openIDs []string) (map[string]string, error)
}

// SessionCache 存取登录会话，key 形如 "Session:<openId>"。
type SessionCache interface {
	Get(ctx context.Context, openID string) (*domain.Session, error)
	Put(ctx context.Context, session *domain.Session, ttl time.Duration) error
	// Touch 续期会话，不存在时返回 ErrSessionNotFound。
	Touch(ctx context.Context, openID string, ttl time.Duration) error
}
