package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/swust-xl/CampusPartner-sub001/internal/notify"
	"github.com/swust-xl/CampusPartner-sub001/internal/tasks"
)

// NotificationHandler 处理满员通知批量发送任务
type NotificationHandler struct {
	sender notify.SMSSender
	log    *logrus.Entry
}

// NewNotificationHandler 创建 Handler 实例
func NewNotificationHandler(sender notify.SMSSender, logger *logrus.Logger) *NotificationHandler {
	if sender == nil {
		panic("SMSSender cannot be nil for NotificationHandler")
	}
	return &NotificationHandler{sender: sender, log: logger.WithField("component", "notification_handler")}
}

// ProcessTask 实现 asynq.Handler 接口。
// 任一消息发送失败都返回错误，由 asynq 重试整个批次。
func (h *NotificationHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	logCtx := h.log.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})

	var payload tasks.NotificationBatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithFields(logrus.Fields{"room_tag": payload.RoomTag, "count": len(payload.Messages)})

	var errs []error
	for _, msg := range payload.Messages {
		if err := h.sender.Send(ctx, msg.To, payload.RoomTag, msg.Vars); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", msg.To, err))
		}
	}
	if len(errs) > 0 {
		logCtx.WithField("failed", len(errs)).Error("Notification batch partially failed")
		return errors.Join(errs...)
	}

	logCtx.Info("Notification batch delivered")
	return nil
}
