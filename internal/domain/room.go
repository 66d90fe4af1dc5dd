package domain

import "time"

// 缓存中实体的类型名，用于拼接 "<EntityType>:<id>" 形式的 key
const (
	EntityRoom    = "Room"
	EntitySession = "Session"
)

// RoomStatus 房间状态，只允许 OPEN -> CLOSED 单向流转
type RoomStatus string

const (
	RoomOpen   RoomStatus = "OPEN"
	RoomClosed RoomStatus = "CLOSED"
)

// TagTransport 拼车类房间，通知中需要带上出发地
const TagTransport = "transport"

// Location 描述一个地点 (出发地 / 目的地)。
type Location struct {
	Name      string  `json:"name"`
	Longitude float64 `json:"longitude,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
}

// Room 表示一个结伴房间，是缓存中的可变实体。
type Room struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Tag           string     `json:"tag"`
	ContactType   string     `json:"contact_type,omitempty"`
	Content       string     `json:"content,omitempty"`
	StartLocation Location   `json:"start_location"`
	EndLocation   Location   `json:"end_location"`
	StartTime     time.Time  `json:"start_time"`
	MaxMemberNum  int        `json:"max_member_num"`
	Members       []string   `json:"members"`
	Status        RoomStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsOpen 房间是否仍可加入
func (r *Room) IsOpen() bool {
	return r.Status == RoomOpen
}

// IsFull 成员数是否已达到上限
func (r *Room) IsFull() bool {
	return len(r.Members) >= r.MaxMemberNum
}

// HasMember 判断用户是否已在房间内
func (r *Room) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// AddMember 加入成员，已存在时返回 false。
// 容量检查由调用方负责。
func (r *Room) AddMember(userID string) bool {
	if r.HasMember(userID) {
		return false
	}
	r.Members = append(r.Members, userID)
	return true
}

// RemoveMember 移除成员，不存在时返回 false。
func (r *Room) RemoveMember(userID string) bool {
	for i, m := range r.Members {
		if m == userID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return true
		}
	}
	return false
}

// Close 将房间置为 CLOSED，仅当发生状态变化时返回 true。
func (r *Room) Close() bool {
	if r.Status == RoomClosed {
		return false
	}
	r.Status = RoomClosed
	return true
}
