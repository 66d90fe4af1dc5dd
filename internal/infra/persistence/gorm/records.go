package gormpersistence

import (
	"time"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
)

// LocationColumns 以前缀内嵌到 rooms 表 (start_name, end_latitude ...)
type LocationColumns struct {
	Name      string  `gorm:"size:128"`
	Longitude float64
	Latitude  float64
}

// RoomRecord 是归档房间在 rooms 表中的持久化形式
type RoomRecord struct {
	ID           string          `gorm:"primaryKey;size:64"`
	OwnerID      string          `gorm:"size:64;index;not null"`
	Tag          string          `gorm:"size:32;index;not null"`
	ContactType  string          `gorm:"size:32"`
	Content      string          `gorm:"type:text"`
	Start        LocationColumns `gorm:"embedded;embeddedPrefix:start_"`
	End          LocationColumns `gorm:"embedded;embeddedPrefix:end_"`
	StartTime    time.Time       `gorm:"index"`
	MaxMemberNum int             `gorm:"not null"`
	MemberCount  int             `gorm:"not null"`
	Members      []string        `gorm:"serializer:json;type:json"`
	Status       string          `gorm:"size:16;index;not null"`
	CreatedAt    time.Time       `gorm:"index"`
	UpdatedAt    time.Time
	ArchivedAt   time.Time
}

// TableName 指定表名
func (RoomRecord) TableName() string {
	return "rooms"
}

// UserRecord 是 users 表中的用户档案 (由用户服务写入，这里只读)
type UserRecord struct {
	OpenID    string `gorm:"primaryKey;size:64"`
	Nickname  string `gorm:"size:64"`
	Phone     string `gorm:"size:32;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (UserRecord) TableName() string {
	return "users"
}

func toRoomRecord(room *domain.Room, archivedAt time.Time) RoomRecord {
	members := make([]string, len(room.Members))
	copy(members, room.Members)
	return RoomRecord{
		ID:           room.ID,
		OwnerID:      room.OwnerID,
		Tag:          room.Tag,
		ContactType:  room.ContactType,
		Content:      room.Content,
		Start:        toLocationColumns(room.StartLocation),
		End:          toLocationColumns(room.EndLocation),
		StartTime:    room.StartTime,
		MaxMemberNum: room.MaxMemberNum,
		MemberCount:  len(members),
		Members:      members,
		Status:       string(room.Status),
		CreatedAt:    room.CreatedAt,
		UpdatedAt:    room.UpdatedAt,
		ArchivedAt:   archivedAt,
	}
}

func toDomainRoom(rec *RoomRecord) domain.Room {
	members := rec.Members
	if members == nil {
		members = []string{}
	}
	return domain.Room{
		ID:            rec.ID,
		OwnerID:       rec.OwnerID,
		Tag:           rec.Tag,
		ContactType:   rec.ContactType,
		Content:       rec.Content,
		StartLocation: toDomainLocation(rec.Start),
		EndLocation:   toDomainLocation(rec.End),
		StartTime:     rec.StartTime,
		MaxMemberNum:  rec.MaxMemberNum,
		Members:       members,
		Status:        domain.RoomStatus(rec.Status),
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

func toLocationColumns(l domain.Location) LocationColumns {
	return LocationColumns{Name: l.Name, Longitude: l.Longitude, Latitude: l.Latitude}
}

func toDomainLocation(c LocationColumns) domain.Location {
	return domain.Location{Name: c.Name, Longitude: c.Longitude, Latitude: c.Latitude}
}
