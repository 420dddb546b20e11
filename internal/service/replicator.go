package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/pkg/logger"
)

type replicateAction int

const (
	actionAdd replicateAction = iota + 1
	actionRemove
)

type replicateJob struct {
	action replicateAction
	userID string
	fanID  string
	enqAt  time.Time
}

// FanReplicator 本地异步冗余执行器：follows 写入后异步落 fans
type FanReplicator struct {
	fanRepo   repository.FanRepository
	ch        chan replicateJob
	metricsCh chan time.Duration
	wg        sync.WaitGroup
}

func NewFanReplicator(fanRepo repository.FanRepository, queueSize int) *FanReplicator {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &FanReplicator{fanRepo: fanRepo, ch: make(chan replicateJob, queueSize), metricsCh: make(chan time.Duration, 1024)}
}

// Start 启动 workers，返回的停止函数会在 ctx 截止前尽量排空队列
func (r *FanReplicator) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for {
				select {
				case job := <-r.ch:
					r.apply(job)
				case <-stopCh:
					// 排空剩余任务
					for {
						select {
						case job := <-r.ch:
							r.apply(job)
						default:
							return
						}
					}
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		done := make(chan struct{})
		go func() { r.wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *FanReplicator) apply(job replicateJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var err error
	switch job.action {
	case actionAdd:
		err = r.fanRepo.Create(ctx, job.userID, job.fanID)
	case actionRemove:
		err = r.fanRepo.Delete(ctx, job.userID, job.fanID)
	}
	if err != nil {
		logger.Warn("fan replication failed", zap.String("user", job.userID), zap.String("fan", job.fanID), zap.Error(err))
	}
	if !job.enqAt.IsZero() {
		select {
		case r.metricsCh <- time.Since(job.enqAt):
		default:
		}
	}
}

func (r *FanReplicator) EnqueueAdd(userID, fanID string) {
	select {
	case r.ch <- replicateJob{action: actionAdd, userID: userID, fanID: fanID, enqAt: time.Now()}:
	default:
		logger.Warn("replicator queue full, drop add", zap.String("user", userID), zap.String("fan", fanID))
	}
}

func (r *FanReplicator) EnqueueRemove(userID, fanID string) {
	select {
	case r.ch <- replicateJob{action: actionRemove, userID: userID, fanID: fanID, enqAt: time.Now()}:
	default:
		logger.Warn("replicator queue full, drop remove", zap.String("user", userID), zap.String("fan", fanID))
	}
}

// Metrics 复制落地耗时（每处理一条发送一次，满了丢弃）
func (r *FanReplicator) Metrics() <-chan time.Duration { return r.metricsCh }

// QueueLen 当前队列长度（采样值）
func (r *FanReplicator) QueueLen() int { return len(r.ch) }
