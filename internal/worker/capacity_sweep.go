package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
	"github.com/swust-xl/CampusPartner-sub001/internal/notify"
	"github.com/swust-xl/CampusPartner-sub001/internal/repository"
)

// CapacitySweepName 满员检查任务的锁名与任务名
const CapacitySweepName = "capacity-sweep"

// CapacityReport 一次满员检查的统计
type CapacityReport struct {
	Scanned int
	Full    int
	Closed  int
	// Skipped 通知发出后、关闭之前已不再满员的房间，保持 OPEN
	Skipped int
	Failed  int
}

// CapacitySweep 找出已满的 OPEN 房间，通知成员后关闭房间。
type CapacitySweep struct {
	cache    repository.RoomCache
	users    repository.UserDirectory
	notifier notify.Notifier
	log      *logrus.Entry
}

// NewCapacitySweep 创建 CapacitySweep 实例
func NewCapacitySweep(cache repository.RoomCache, users repository.UserDirectory, notifier notify.Notifier, logger *logrus.Logger) *CapacitySweep {
	if cache == nil || users == nil || notifier == nil {
		panic("cache, users and notifier are required for CapacitySweep")
	}
	return &CapacitySweep{
		cache:    cache,
		users:    users,
		notifier: notifier,
		log:      logger.WithField("component", CapacitySweepName),
	}
}

// Task 返回可注册到 Scheduler 的周期任务
func (s *CapacitySweep) Task(interval, maxHold, minHold time.Duration) PeriodicTask {
	return PeriodicTask{
		Name:     CapacitySweepName,
		Interval: interval,
		MaxHold:  maxHold,
		MinHold:  minHold,
		Run: func(ctx context.Context) error {
			_, err := s.Run(ctx)
			return err
		},
	}
}

// Run 执行一次满员检查。单个房间失败只记录日志，不影响其他房间。
func (s *CapacitySweep) Run(ctx context.Context) (CapacityReport, error) {
	var report CapacityReport
	rooms, err := s.cache.MultiGet(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to load rooms from cache")
		return report, fmt.Errorf("capacity sweep: load rooms: %w", err)
	}
	report.Scanned = len(rooms)

	for i := range rooms {
		room := &rooms[i]
		if !room.IsOpen() || !room.IsFull() {
			continue
		}
		report.Full++
		closed, err := s.notifyAndClose(ctx, room)
		if err != nil {
			report.Failed++
			var dispatchErr *NotificationDispatchError
			if errors.As(err, &dispatchErr) {
				s.log.WithError(err).WithField("room_id", room.ID).Warn("Notification dispatch failed, room left open")
			} else {
				s.log.WithError(err).WithField("room_id", room.ID).Error("Failed to close full room")
			}
			continue
		}
		if !closed {
			report.Skipped++
			continue
		}
		report.Closed++
	}

	s.log.WithFields(logrus.Fields{
		"scanned": report.Scanned,
		"full":    report.Full,
		"closed":  report.Closed,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	}).Info("Capacity sweep finished")
	return report, nil
}

// notifyAndClose 通知成员后关闭房间。
// 关闭时重新检查满员，期间有人退出则保持 OPEN 并返回 closed=false。
func (s *CapacitySweep) notifyAndClose(ctx context.Context, room *domain.Room) (bool, error) {
	contacts, err := s.users.FindContacts(ctx, room.Members)
	if err != nil {
		return false, &NotificationDispatchError{RoomID: room.ID, Err: fmt.Errorf("resolve contacts: %w", err)}
	}
	messages, missing := notify.BuildBatch(room, contacts)
	if len(missing) > 0 {
		s.log.WithFields(logrus.Fields{"room_id": room.ID, "members": missing}).Warn("Members without phone number skipped")
	}
	if err := s.notifier.SendBatch(ctx, room.Tag, messages); err != nil {
		return false, &NotificationDispatchError{RoomID: room.ID, Err: err}
	}

	closed := false
	current, err := s.cache.Mutate(ctx, room.ID, func(r *domain.Room) (bool, error) {
		if !r.IsOpen() || !r.IsFull() {
			return false, nil
		}
		closed = r.Close()
		return closed, nil
	})
	if err != nil {
		return false, fmt.Errorf("close room %s: %w", room.ID, err)
	}
	if !closed {
		s.log.WithFields(logrus.Fields{
			"room_id": room.ID,
			"status":  current.Status,
			"members": len(current.Members),
			"max":     current.MaxMemberNum,
		}).Info("Room no longer full after notification, left unchanged")
		return false, nil
	}
	s.log.WithFields(logrus.Fields{"room_id": room.ID, "notified": len(messages)}).Info("Full room notified and closed")
	return true, nil
}
