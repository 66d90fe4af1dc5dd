package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/swust-xl/CampusPartner-sub001/internal/repository"
)

// ArchivalSweepName 归档任务的锁名与任务名
const ArchivalSweepName = "archival-sweep"

// ArchivalReport 一次归档的统计
type ArchivalReport struct {
	Scanned  int
	Archived int
	Failed   int
}

// ArchivalSweep 把已关闭的房间写入持久化存储，再从缓存删除。
// 先写后删：写入后崩溃的房间会留在缓存中，下一轮重新写入 (upsert) 并删除。
type ArchivalSweep struct {
	cache repository.RoomCache
	store repository.RoomStore
	log   *logrus.Entry
}

// NewArchivalSweep 创建 ArchivalSweep 实例
func NewArchivalSweep(cache repository.RoomCache, store repository.RoomStore, logger *logrus.Logger) *ArchivalSweep {
	if cache == nil || store == nil {
		panic("cache and store are required for ArchivalSweep")
	}
	return &ArchivalSweep{
		cache: cache,
		store: store,
		log:   logger.WithField("component", ArchivalSweepName),
	}
}

// Task 返回可注册到 Scheduler 的周期任务
func (s *ArchivalSweep) Task(interval, maxHold, minHold time.Duration) PeriodicTask {
	return PeriodicTask{
		Name:     ArchivalSweepName,
		Interval: interval,
		MaxHold:  maxHold,
		MinHold:  minHold,
		Run: func(ctx context.Context) error {
			_, err := s.Run(ctx)
			return err
		},
	}
}

// Run 执行一次归档
func (s *ArchivalSweep) Run(ctx context.Context) (ArchivalReport, error) {
	var report ArchivalReport
	rooms, err := s.cache.MultiGet(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to load rooms from cache")
		return report, fmt.Errorf("archival sweep: load rooms: %w", err)
	}
	report.Scanned = len(rooms)

	archived := make([]string, 0)
	for i := range rooms {
		room := &rooms[i]
		if room.IsOpen() {
			continue
		}
		if err := s.store.Save(ctx, room); err != nil {
			werr := &StorageWriteError{RoomID: room.ID, Err: err}
			s.log.WithError(werr).WithField("room_id", room.ID).Error("Failed to archive room, keeping it in cache")
			report.Failed++
			continue
		}
		archived = append(archived, room.ID)
	}

	if len(archived) > 0 {
		if err := s.cache.Delete(ctx, archived...); err != nil {
			s.log.WithError(err).WithField("count", len(archived)).Error("Failed to evict archived rooms from cache")
			return report, fmt.Errorf("archival sweep: evict %d rooms: %w", len(archived), err)
		}
	}
	report.Archived = len(archived)

	s.log.WithFields(logrus.Fields{
		"scanned":  report.Scanned,
		"archived": report.Archived,
		"failed":   report.Failed,
	}).Info("Archival sweep finished")
	return report, nil
}
