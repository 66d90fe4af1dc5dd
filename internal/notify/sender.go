package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// SMSSender 是真正的短信通道 (由外部网关实现)。
type SMSSender interface {
	Send(ctx context.Context, to, roomTag string, vars map[string]string) error
}

// LogSender 只记录日志，用于未接入短信网关的环境
type LogSender struct {
	log *logrus.Entry
}

// NewLogSender 创建 LogSender 实例
func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{log: logger.WithField("component", "sms_sender")}
}

func (s *LogSender) Send(_ context.Context, to, roomTag string, vars map[string]string) error {
	s.log.WithFields(logrus.Fields{
		"to":       maskPhone(to),
		"room_tag": roomTag,
		"vars":     vars,
	}).Info("SMS notification sent")
	return nil
}

// maskPhone 日志中只保留手机号后四位
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range masked {
		if i < len(phone)-4 {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
