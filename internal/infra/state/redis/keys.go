package redisstate

import "github.com/swust-xl/CampusPartner-sub001/internal/domain"

// --- Key Generation Helpers ---
// 实体 key 统一为 "<prefix><EntityType>:<id>"，prefix 默认为空。

func entityKey(prefix, entityType, id string) string {
	return prefix + entityType + ":" + id
}

func roomKey(prefix, roomID string) string {
	return entityKey(prefix, domain.EntityRoom, roomID)
}

func roomKeyPattern(prefix string) string {
	return prefix + domain.EntityRoom + ":*"
}

func sessionKey(prefix, openID string) string {
	return entityKey(prefix, domain.EntitySession, openID)
}

func lockKey(prefix, name string) string {
	return prefix + "lock:" + name
}
