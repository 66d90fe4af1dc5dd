package tasks

import (
	"encoding/json"
	"strings"
)

// 定义任务类型常量
const (
	// TypeNotificationBatch 满员通知批量发送任务
	TypeNotificationBatch = "notification:batch"
	// sweepTypePrefix 周期任务的类型前缀，完整类型为 "sweep:<任务名>"
	sweepTypePrefix = "sweep:"
)

// NotificationMessage 一条待发送的短信
type NotificationMessage struct {
	To   string            `json:"to"`
	Vars map[string]string `json:"vars"`
}

// NotificationBatchPayload 定义了通知任务的数据结构
type NotificationBatchPayload struct {
	RoomTag  string                `json:"room_tag"`
	Messages []NotificationMessage `json:"messages"`
}

// NewNotificationBatchTask 序列化通知任务的 payload
func NewNotificationBatchTask(roomTag string, messages []NotificationMessage) ([]byte, error) {
	return json.Marshal(NotificationBatchPayload{RoomTag: roomTag, Messages: messages})
}

// SweepPayload 周期任务的 payload，只携带任务名
type SweepPayload struct {
	Name string `json:"name"`
}

// SweepTaskType 返回周期任务对应的 asynq 任务类型
func SweepTaskType(name string) string {
	return sweepTypePrefix + name
}

// SweepNameFromType 从任务类型中取回任务名
func SweepNameFromType(taskType string) (string, bool) {
	if !strings.HasPrefix(taskType, sweepTypePrefix) {
		return "", false
	}
	return strings.TrimPrefix(taskType, sweepTypePrefix), true
}

// NewSweepTask 序列化周期任务的 payload
func NewSweepTask(name string) ([]byte, error) {
	return json.Marshal(SweepPayload{Name: name})
}
