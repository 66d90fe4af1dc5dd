package domain

import "time"

// User 表示一个用户档案，房间成员以 OpenID 标识。
type User struct {
	OpenID    string
	Nickname  string
	Phone     string // 接收满员通知的手机号
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session 是登录后写入缓存的会话，key 为 "Session:<openId>"。
type Session struct {
	OpenID    string    `json:"open_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
