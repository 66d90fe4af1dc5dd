package worker

import (
	"errors"
	"fmt"
)

// ErrUnknownTask RunOnce / Handler 收到未注册的任务名
var ErrUnknownTask = errors.New("worker: unknown periodic task")

// StorageWriteError 归档时单个房间写入持久化存储失败。
// 该房间不会从缓存删除，下一轮归档重试。
type StorageWriteError struct {
	RoomID string
	Err    error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("archive room %s: %v", e.RoomID, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// NotificationDispatchError 满员通知发送失败，房间保持 OPEN。
type NotificationDispatchError struct {
	RoomID string
	Err    error
}

func (e *NotificationDispatchError) Error() string {
	return fmt.Sprintf("notify members of room %s: %v", e.RoomID, e.Err)
}

func (e *NotificationDispatchError) Unwrap() error { return e.Err }
