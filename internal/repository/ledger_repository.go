package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/freed/internal/model"
)

// LedgerRepository 定时发布台账。到期扫描必须直读数据库，不经过任何缓存
type LedgerRepository interface {
	CreatePending(ctx context.Context, row *model.ScheduledPost) error
	Get(ctx context.Context, id string) (*model.ScheduledPost, error)
	ListByContent(ctx context.Context, contentID string) ([]*model.ScheduledPost, error)
	// ListDue status = pending AND scheduled_for <= now，按 scheduled_for 升序
	ListDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledPost, error)
	// ListPending 不限到期时间的 pending 行，对账使用
	ListPending(ctx context.Context, limit int) ([]*model.ScheduledPost, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id, reason string, at time.Time) error
	CountByStatus(ctx context.Context) (map[model.LedgerStatus]int64, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository { return &ledgerRepository{db: db} }

func (r *ledgerRepository) CreatePending(ctx context.Context, row *model.ScheduledPost) error {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	row.Status = model.LedgerPending
	row.ScheduledFor = row.ScheduledFor.UTC()
	err := r.db.WithContext(ctx).Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrActiveScheduleExists
	}
	return err
}

func (r *ledgerRepository) Get(ctx context.Context, id string) (*model.ScheduledPost, error) {
	var row model.ScheduledPost
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *ledgerRepository) ListByContent(ctx context.Context, contentID string) ([]*model.ScheduledPost, error) {
	var res []*model.ScheduledPost
	err := r.db.WithContext(ctx).
		Where("content_id = ?", contentID).
		Order("created_at DESC").
		Find(&res).Error
	return res, err
}

func (r *ledgerRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledPost, error) {
	var res []*model.ScheduledPost
	q := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", model.LedgerPending, now.UTC()).
		Order("scheduled_for ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&res).Error
	return res, err
}

func (r *ledgerRepository) ListPending(ctx context.Context, limit int) ([]*model.ScheduledPost, error) {
	var res []*model.ScheduledPost
	q := r.db.WithContext(ctx).
		Where("status = ?", model.LedgerPending).
		Order("scheduled_for ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&res).Error
	return res, err
}

func (r *ledgerRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx, id, map[string]any{
		"status":       model.LedgerPublished,
		"published_at": at,
		"error":        "",
		"updated_at":   at,
	})
}

func (r *ledgerRepository) MarkFailed(ctx context.Context, id, reason string, at time.Time) error {
	return r.transition(ctx, id, map[string]any{
		"status":     model.LedgerFailed,
		"error":      reason,
		"updated_at": at,
	})
}

// transition 只推进仍处于 pending 的行；并发调用中只有一个能命中
func (r *ledgerRepository) transition(ctx context.Context, id string, values map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&model.ScheduledPost{}).
		Where("id = ? AND status = ?", id, model.LedgerPending).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrLedgerNotPending
	}
	return nil
}

func (r *ledgerRepository) CountByStatus(ctx context.Context) (map[model.LedgerStatus]int64, error) {
	type row struct {
		Status model.LedgerStatus
		Total  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&model.ScheduledPost{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := map[model.LedgerStatus]int64{
		model.LedgerPending:   0,
		model.LedgerPublished: 0,
		model.LedgerFailed:    0,
	}
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}
