package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/swust-xl/CampusPartner-sub001/internal/repository"
	"github.com/swust-xl/CampusPartner-sub001/internal/tasks"
)

const releaseTimeout = 5 * time.Second

// PeriodicTask 一个按固定间隔运行、集群内互斥的任务。
type PeriodicTask struct {
	Name     string
	Interval time.Duration
	// MaxHold 锁的最长持有时间，持有者崩溃后锁在此时间后自动释放，不超过 Interval
	MaxHold time.Duration
	// MinHold 锁的最短持有时间，防止其他实例在同一周期内重复运行，通常略小于 Interval
	MinHold time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler 管理命名的周期任务，每次运行都包裹在 获取锁 / 执行 / 释放锁 之中。
// 定时由 asynq.Scheduler 驱动，任务由 worker server 执行。
type Scheduler struct {
	lock  repository.DistributedLock
	owner string
	log   *logrus.Entry

	mu    sync.RWMutex
	tasks map[string]PeriodicTask
	order []string
}

// NewScheduler 创建 Scheduler 实例，owner 在集群内应唯一
func NewScheduler(lock repository.DistributedLock, owner string, logger *logrus.Logger) *Scheduler {
	if lock == nil {
		panic("DistributedLock cannot be nil for Scheduler")
	}
	if owner == "" {
		panic("owner cannot be empty for Scheduler")
	}
	return &Scheduler{
		lock:  lock,
		owner: owner,
		log:   logger.WithFields(logrus.Fields{"component": "scheduler", "owner": owner}),
		tasks: make(map[string]PeriodicTask),
	}
}

// Register 注册一个周期任务
func (s *Scheduler) Register(task PeriodicTask) error {
	switch {
	case task.Name == "":
		return errors.New("worker: periodic task name is required")
	case task.Run == nil:
		return fmt.Errorf("worker: periodic task %s has no Run func", task.Name)
	case task.Interval <= 0:
		return fmt.Errorf("worker: periodic task %s interval must be positive", task.Name)
	case task.MaxHold <= 0:
		return fmt.Errorf("worker: periodic task %s maxHold must be positive", task.Name)
	case task.MaxHold > task.Interval:
		return fmt.Errorf("worker: periodic task %s maxHold %s exceeds interval %s", task.Name, task.MaxHold, task.Interval)
	case task.MinHold < 0 || task.MinHold > task.MaxHold:
		return fmt.Errorf("worker: periodic task %s minHold must be within [0, maxHold]", task.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.Name]; exists {
		return fmt.Errorf("worker: periodic task %s already registered", task.Name)
	}
	s.tasks[task.Name] = task
	s.order = append(s.order, task.Name)
	return nil
}

// Tasks 按注册顺序返回全部任务
func (s *Scheduler) Tasks() []PeriodicTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PeriodicTask, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tasks[name])
	}
	return out
}

// RunOnce 运行一次指定任务。
// 锁被其他实例持有时跳过本次运行，返回 ran=false 且 err=nil。
func (s *Scheduler) RunOnce(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	task, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	// 每次运行使用独立的持有者标识，同一实例并发收到两个任务时第二个也会跳过
	runOwner := s.owner + "/" + uuid.NewString()
	logCtx := s.log.WithFields(logrus.Fields{"task": name, "run_owner": runOwner})

	lease, err := s.lock.TryAcquire(ctx, name, runOwner, task.MaxHold)
	if err != nil {
		if errors.Is(err, repository.ErrLockUnavailable) {
			logCtx.Info("Lock held by another instance, skipping run")
			return false, nil
		}
		logCtx.WithError(err).Error("Failed to acquire task lock")
		return false, fmt.Errorf("worker: acquire lock for %s: %w", name, err)
	}

	defer func() {
		// 任务的 ctx 可能已取消，释放锁使用独立的超时
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		released, err := s.lock.Release(releaseCtx, lease, task.MinHold)
		if err != nil {
			logCtx.WithError(err).Warn("Failed to release task lock, it will expire by TTL")
			return
		}
		if !released {
			logCtx.Warn("Task lock expired before release")
		}
	}()

	start := time.Now()
	logCtx.Debug("Periodic task started")
	if err := task.Run(ctx); err != nil {
		logCtx.WithError(err).WithField("elapsed", time.Since(start)).Error("Periodic task failed")
		return true, err
	}
	logCtx.WithField("elapsed", time.Since(start)).Info("Periodic task completed")
	return true, nil
}

// Handler 返回执行指定任务的 asynq 处理器
func (s *Scheduler) Handler(name string) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		_, err := s.RunOnce(ctx, name)
		return err
	}
}

// Attach 把全部任务以 "@every <interval>" 注册到 asynq.Scheduler。
// Unique 保证同一周期内多个实例的定时器只入队一个任务。
func (s *Scheduler) Attach(periodic *asynq.Scheduler) error {
	for _, task := range s.Tasks() {
		payload, err := tasks.NewSweepTask(task.Name)
		if err != nil {
			return fmt.Errorf("worker: marshal payload for %s: %w", task.Name, err)
		}
		spec := "@every " + task.Interval.String()
		entryID, err := periodic.Register(spec,
			asynq.NewTask(tasks.SweepTaskType(task.Name), payload),
			asynq.Queue("default"),
			asynq.MaxRetry(0),
			asynq.Unique(task.Interval),
		)
		if err != nil {
			return fmt.Errorf("worker: register %s with spec %q: %w", task.Name, spec, err)
		}
		s.log.WithFields(logrus.Fields{"task": task.Name, "spec": spec, "entry_id": entryID}).Info("Periodic task scheduled")
	}
	return nil
}
