package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/swust-xl/CampusPartner-sub001/internal/tasks"
)

// Enqueuer 是 asynq.Client 中用到的部分
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqNotifier 把通知批次作为任务入队，由 worker 实际发送。
// 入队失败即视为发送失败。
type AsynqNotifier struct {
	client   Enqueuer
	queue    string
	maxRetry int
	log      *logrus.Entry
}

// NewAsynqNotifier 创建 AsynqNotifier 实例
func NewAsynqNotifier(client Enqueuer, logger *logrus.Logger) *AsynqNotifier {
	if client == nil {
		panic("asynq client cannot be nil for AsynqNotifier")
	}
	return &AsynqNotifier{
		client:   client,
		queue:    "critical",
		maxRetry: 5,
		log:      logger.WithField("component", "notifier"),
	}
}

func (n *AsynqNotifier) SendSingle(ctx context.Context, to, roomTag string, vars map[string]string) error {
	return n.SendBatch(ctx, roomTag, []Message{{To: to, Vars: vars}})
}

func (n *AsynqNotifier) SendBatch(ctx context.Context, roomTag string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	payload, err := tasks.NewNotificationBatchTask(roomTag, messages)
	if err != nil {
		return fmt.Errorf("notify: marshal batch for tag %s: %w", roomTag, err)
	}
	task := asynq.NewTask(tasks.TypeNotificationBatch, payload)
	info, err := n.client.EnqueueContext(ctx, task,
		asynq.Queue(n.queue),
		asynq.MaxRetry(n.maxRetry),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("notify: enqueue batch of %d for tag %s: %w", len(messages), roomTag, err)
	}
	n.log.WithFields(logrus.Fields{
		"task_id":  info.ID,
		"room_tag": roomTag,
		"count":    len(messages),
	}).Info("Notification batch enqueued")
	return nil
}
