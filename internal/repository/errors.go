package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到 (缓存 key 不存在或数据库无记录)
	ErrNotFound = errors.New("repository: record not found")
	// ErrConflict 表示乐观锁 (CAS) 重试次数耗尽
	ErrConflict = errors.New("repository: concurrent update conflict")
	// ErrLockUnavailable 表示分布式锁当前被其他持有者占用
	ErrLockUnavailable = errors.New("repository: lock unavailable")
	// ErrInvalidQuery 表示查询中引用了不存在的字段
	ErrInvalidQuery = errors.New("repository: invalid query")
)

// 特定资源的错误
var (
	ErrRoomNotFound    = ErrNotFound
	ErrSessionNotFound = ErrNotFound
)
