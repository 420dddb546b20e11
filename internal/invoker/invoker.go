// Package invoker 外部定时器：按 cron 表达式周期调用发布触发器。
// 触发器本身不持有任何定时器；同一时刻最多一次调用在执行，重叠的 tick 直接跳过。
// 进程内调用一旦开始就跑完，超时只对 HTTPTarget 的请求生效。
package invoker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/d60-Lab/freed/internal/service"
)

// Target 一次触发调用
type Target interface {
	Invoke(ctx context.Context) (*service.RunSummary, error)
}

// LocalTarget 进程内直接调用触发器
type LocalTarget struct {
	Trigger *service.PublicationTrigger
}

func (t LocalTarget) Invoke(ctx context.Context) (*service.RunSummary, error) {
	return t.Trigger.Run(ctx)
}

// zapCronLogger 把 cron 内部日志接到 zap
type zapCronLogger struct{ s *zap.SugaredLogger }

func (l zapCronLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l zapCronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}

// Invoker 周期调用器
type Invoker struct {
	c        *cron.Cron
	schedule string
	target   Target
	log      *zap.Logger

	runs    atomic.Int64
	skipped atomic.Int64
	running atomic.Bool
}

// New spec 支持 5/6 段 cron 与 @every 描述符
func New(spec string, target Target, log *zap.Logger) (*Invoker, error) {
	if target == nil {
		return nil, errors.New("invoker: target is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	cl := zapCronLogger{s: log.Sugar()}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	inv := &Invoker{
		c: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		schedule: spec,
		target:   target,
		log:      log,
	}
	if _, err := inv.c.AddFunc(spec, inv.tick); err != nil {
		return nil, fmt.Errorf("invoker: parse schedule %q: %w", spec, err)
	}
	return inv, nil
}

func (i *Invoker) tick() {
	if _, err := i.RunOnce(context.Background()); err != nil {
		i.log.Error("scheduled trigger invocation failed", zap.Error(err))
	}
}

// RunOnce 立即调用一次，不经过 cron
func (i *Invoker) RunOnce(ctx context.Context) (*service.RunSummary, error) {
	if !i.running.CompareAndSwap(false, true) {
		i.skipped.Add(1)
		i.log.Info("previous invocation still running, skipping")
		return nil, nil
	}
	defer i.running.Store(false)

	i.runs.Add(1)
	start := time.Now()
	summary, err := i.target.Invoke(ctx)
	if err != nil {
		return nil, err
	}
	i.log.Info("trigger invoked",
		zap.Duration("took", time.Since(start)),
		zap.Int("total", summary.TotalScheduled),
		zap.Int("published", summary.Published),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("inconsistent", summary.Inconsistent),
	)
	return summary, nil
}

// Start 后台运行 cron。下一次触发时间由 cron 的调度 goroutine 计算，这里只记录表达式
func (i *Invoker) Start() {
	i.c.Start()
	i.log.Info("invoker started", zap.String("schedule", i.schedule))
}

// Stop 停止调度并等待执行中的调用结束，或 ctx 到期
func (i *Invoker) Stop(ctx context.Context) error {
	done := i.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runs 已执行次数；Skipped 因上一次未结束而跳过的次数
func (i *Invoker) Runs() int64    { return i.runs.Load() }
func (i *Invoker) Skipped() int64 { return i.skipped.Load() }
