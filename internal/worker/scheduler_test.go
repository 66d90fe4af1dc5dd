package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swust-xl/CampusPartner-sub001/internal/tasks"
	"github.com/swust-xl/CampusPartner-sub001/internal/worker"
)

func countingTask(name string, minHold time.Duration, calls *int32) worker.PeriodicTask {
	return worker.PeriodicTask{
		Name:     name,
		Interval: 20 * time.Second,
		MaxHold:  15 * time.Second,
		MinHold:  minHold,
		Run: func(context.Context) error {
			atomic.AddInt32(calls, 1)
			return nil
		},
	}
}

func TestScheduler_Register_Validation(t *testing.T) {
	env := newTestEnv(t)
	s := worker.NewScheduler(env.lock, "node-a", env.logger)
	noop := func(context.Context) error { return nil }

	cases := map[string]worker.PeriodicTask{
		"missing name":        {Interval: time.Second, MaxHold: time.Second, Run: noop},
		"missing run":         {Name: "x", Interval: time.Second, MaxHold: time.Second},
		"zero interval":       {Name: "x", MaxHold: time.Second, Run: noop},
		"zero max hold":       {Name: "x", Interval: time.Second, Run: noop},
		"min hold > max hold": {Name: "x", Interval: time.Second, MaxHold: time.Second, MinHold: 2 * time.Second, Run: noop},
		"max hold > interval": {Name: "x", Interval: time.Second, MaxHold: 2 * time.Second, Run: noop},
	}
	for name, task := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.Register(task))
		})
	}

	var calls int32
	require.NoError(t, s.Register(countingTask("sweep", 0, &calls)))
	assert.Error(t, s.Register(countingTask("sweep", 0, &calls)), "重复注册应报错")
	require.Len(t, s.Tasks(), 1)
	assert.Equal(t, "sweep", s.Tasks()[0].Name)
}

func TestScheduler_RunOnce_AcquiresAndReleases(t *testing.T) {
	env := newTestEnv(t)
	s := worker.NewScheduler(env.lock, "node-a", env.logger)
	var calls int32
	require.NoError(t, s.Register(countingTask("capacity-sweep", 0, &calls)))

	ran, err := s.RunOnce(context.Background(), "capacity-sweep")
	require.NoError(t, err)
	assert.True(t, ran)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.False(t, env.mr.Exists("lock:capacity-sweep"), "minHold 为 0 时运行结束应删除锁")

	_, err = s.RunOnce(context.Background(), "unknown")
	assert.ErrorIs(t, err, worker.ErrUnknownTask)
}

func TestScheduler_RunOnce_SkipsWhileAnotherNodeHoldsLock(t *testing.T) {
	env := newTestEnv(t)
	nodeA := worker.NewScheduler(env.lock, "node-a", env.logger)
	nodeB := worker.NewScheduler(env.lock, "node-b", env.logger)

	started := make(chan struct{})
	finish := make(chan struct{})
	require.NoError(t, nodeA.Register(worker.PeriodicTask{
		Name: "capacity-sweep", Interval: 20 * time.Second, MaxHold: 15 * time.Second,
		Run: func(context.Context) error {
			close(started)
			<-finish
			return nil
		},
	}))
	var callsB int32
	require.NoError(t, nodeB.Register(countingTask("capacity-sweep", 0, &callsB)))

	done := make(chan bool)
	go func() {
		ran, _ := nodeA.RunOnce(context.Background(), "capacity-sweep")
		done <- ran
	}()
	<-started

	ran, err := nodeB.RunOnce(context.Background(), "capacity-sweep")
	require.NoError(t, err, "锁被占用时应跳过而不是报错")
	assert.False(t, ran)
	assert.Zero(t, atomic.LoadInt32(&callsB))

	close(finish)
	assert.True(t, <-done)

	ran, err = nodeB.RunOnce(context.Background(), "capacity-sweep")
	require.NoError(t, err)
	assert.True(t, ran, "A 释放锁后 B 可以运行")
}

func TestScheduler_RunOnce_OneRunPerIntervalAcrossNodes(t *testing.T) {
	env := newTestEnv(t)
	nodeA := worker.NewScheduler(env.lock, "node-a", env.logger)
	nodeB := worker.NewScheduler(env.lock, "node-b", env.logger)
	var callsA, callsB int32
	sweep := func(calls *int32) worker.PeriodicTask {
		task := countingTask("archival-sweep", 19*time.Second, calls)
		task.MaxHold = 20 * time.Second
		return task
	}
	require.NoError(t, nodeA.Register(sweep(&callsA)))
	require.NoError(t, nodeB.Register(sweep(&callsB)))

	ran, err := nodeA.RunOnce(context.Background(), "archival-sweep")
	require.NoError(t, err)
	require.True(t, ran)
	assert.True(t, env.mr.Exists("lock:archival-sweep"), "minHold 未满时锁应保留")

	// B 的定时器在同一周期的中途触发
	env.mr.FastForward(10 * time.Second)
	ran, err = nodeB.RunOnce(context.Background(), "archival-sweep")
	require.NoError(t, err)
	assert.False(t, ran, "同一周期内其他节点应跳过")

	// 下一个周期
	env.mr.FastForward(10 * time.Second)
	ran, err = nodeB.RunOnce(context.Background(), "archival-sweep")
	require.NoError(t, err)
	assert.True(t, ran)
	assert.EqualValues(t, 1, atomic.LoadInt32(&callsA))
	assert.EqualValues(t, 1, atomic.LoadInt32(&callsB))
}

func TestScheduler_RunOnce_SameNodeDoesNotOverlap(t *testing.T) {
	env := newTestEnv(t)
	s := worker.NewScheduler(env.lock, "node-a", env.logger)

	var calls int32
	started := make(chan struct{})
	finish := make(chan struct{})
	require.NoError(t, s.Register(worker.PeriodicTask{
		Name: "capacity-sweep", Interval: 20 * time.Second, MaxHold: 20 * time.Second,
		Run: func(context.Context) error {
			if atomic.AddInt32(&calls, 1) == 1 {
				close(started)
				<-finish
			}
			return nil
		},
	}))

	done := make(chan bool)
	go func() {
		ran, _ := s.RunOnce(context.Background(), "capacity-sweep")
		done <- ran
	}()
	<-started

	// worker 池中同时收到第二个同名任务
	ran, err := s.RunOnce(context.Background(), "capacity-sweep")
	require.NoError(t, err)
	assert.False(t, ran, "同一实例不能并发运行同一任务")

	close(finish)
	assert.True(t, <-done)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestScheduler_RunOnce_TaskErrorReleasesLock(t *testing.T) {
	env := newTestEnv(t)
	s := worker.NewScheduler(env.lock, "node-a", env.logger)
	boom := errors.New("boom")
	require.NoError(t, s.Register(worker.PeriodicTask{
		Name: "failing", Interval: time.Minute, MaxHold: time.Minute,
		Run: func(context.Context) error { return boom },
	}))

	ran, err := s.RunOnce(context.Background(), "failing")
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
	assert.False(t, env.mr.Exists("lock:failing"))
}

func TestScheduler_HandlerAndAttach(t *testing.T) {
	env := newTestEnv(t)
	s := worker.NewScheduler(env.lock, "node-a", env.logger)
	var calls int32
	require.NoError(t, s.Register(countingTask("capacity-sweep", 0, &calls)))

	handler := s.Handler("capacity-sweep")
	require.NoError(t, handler.ProcessTask(context.Background(), asynq.NewTask(tasks.SweepTaskType("capacity-sweep"), nil)))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	periodic := asynq.NewScheduler(asynq.RedisClientOpt{Addr: env.mr.Addr()}, &asynq.SchedulerOpts{})
	assert.NoError(t, s.Attach(periodic))
}
