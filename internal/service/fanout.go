package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/pkg/logger"
)

// FanoutWorker 从 outbox 拉取发布事件并写入粉丝 inbox。
// 领取用条件更新 pending->processing，Postgres 与 SQLite 行为一致，多实例不会重复领取。
type FanoutWorker struct {
	db           *gorm.DB
	fanRepo      repository.FanRepository
	batchSize    int
	claimLimit   int
	pollInterval time.Duration
	workers      int
	metricsCh    chan time.Duration // published -> fanout done
}

func NewFanoutWorker(db *gorm.DB, fanRepo repository.FanRepository, workers, batchSize, claimLimit int, pollInterval time.Duration) *FanoutWorker {
	if workers <= 0 {
		workers = 2
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	if claimLimit <= 0 {
		claimLimit = 64
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &FanoutWorker{
		db:           db,
		fanRepo:      fanRepo,
		workers:      workers,
		batchSize:    batchSize,
		claimLimit:   claimLimit,
		pollInterval: pollInterval,
		metricsCh:    make(chan time.Duration, 1024),
	}
}

func (w *FanoutWorker) Metrics() <-chan time.Duration { return w.metricsCh }

// Start 启动若干 worker 轮询 outbox；返回停止函数
func (w *FanoutWorker) Start() func(context.Context) error {
	stop := make(chan struct{})
	for i := 0; i < w.workers; i++ {
		go w.loop(stop)
	}
	return func(ctx context.Context) error { close(stop); return nil }
}

func (w *FanoutWorker) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := w.ProcessOnce(context.Background()); err != nil {
				logger.Warn("fanout poll failed", zap.Error(err))
			}
		}
	}
}

// claim 逐行条件更新，只拿到自己翻转成功的事件
func (w *FanoutWorker) claim(ctx context.Context) ([]model.Outbox, error) {
	var candidates []model.Outbox
	if err := w.db.WithContext(ctx).
		Where("status = ?", model.OutboxPending).
		Order("created_at").
		Limit(w.claimLimit).
		Find(&candidates).Error; err != nil {
		return nil, err
	}
	claimed := candidates[:0]
	for _, c := range candidates {
		res := w.db.WithContext(ctx).Model(&model.Outbox{}).
			Where("id = ? AND status = ?", c.ID, model.OutboxPending).
			Update("status", model.OutboxProcessing)
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 1 {
			claimed = append(claimed, c)
		}
	}
	return claimed, nil
}

// ProcessOnce 领取一批事件并扇出，返回处理的事件数
func (w *FanoutWorker) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := w.claim(ctx)
	if err != nil && len(batch) == 0 {
		return 0, err
	}

	for _, ev := range batch {
		written, ferr := w.fanout(ctx, ev)
		if ferr != nil {
			// 放回 pending，下一轮重试；inbox 唯一键保证重复写入无副作用
			logger.Warn("fanout failed, requeue", zap.String("post_id", ev.PostID), zap.Error(ferr))
			_ = w.db.WithContext(ctx).Model(&model.Outbox{}).
				Where("id = ?", ev.ID).
				Update("status", model.OutboxPending).Error
			continue
		}
		now := time.Now().UTC()
		_ = w.db.WithContext(ctx).Model(&model.Outbox{}).
			Where("id = ?", ev.ID).
			Updates(map[string]any{"status": model.OutboxDone, "processed_at": now, "fanout_count": written}).Error
		if !ev.PublishedAt.IsZero() {
			select {
			case w.metricsCh <- now.Sub(ev.PublishedAt):
			default:
			}
		}
	}
	return len(batch), err
}

func (w *FanoutWorker) fanout(ctx context.Context, ev model.Outbox) (int64, error) {
	score := ev.PublishedAt.UnixNano()
	now := time.Now().UTC()

	// 作者自己的时间线也包含自己的内容
	records := []model.Inbox{{ID: uuid.New().String(), UserID: ev.AuthorID, PostID: ev.PostID, AuthorID: ev.AuthorID, Score: score, CreatedAt: now}}
	var total int64
	after := ""
	for {
		ids, err := w.fanRepo.ListFanIDsAfter(ctx, ev.AuthorID, after, w.batchSize)
		if err != nil {
			return total, err
		}
		for _, id := range ids {
			records = append(records, model.Inbox{ID: uuid.New().String(), UserID: id, PostID: ev.PostID, AuthorID: ev.AuthorID, Score: score, CreatedAt: now})
		}
		if len(records) > 0 {
			if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error; err != nil {
				return total, err
			}
			total += int64(len(records))
			records = records[:0]
		}
		if len(ids) < w.batchSize {
			return total, nil
		}
		after = ids[len(ids)-1]
	}
}
