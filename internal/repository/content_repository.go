package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/freed/internal/model"
)

// ContentRepository 内容存储。所有状态迁移都是条件更新，以 RowsAffected 判定结果
type ContentRepository interface {
	Create(ctx context.Context, post *model.Post) error
	Get(ctx context.Context, id string) (*model.Post, error)
	Delete(ctx context.Context, id string) error
	ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]*model.Post, error)
	ListPublishedByIDs(ctx context.Context, ids []string) ([]*model.Post, error)

	// MarkScheduled draft|failed -> scheduled
	MarkScheduled(ctx context.Context, id string, at time.Time) error
	// RevertScheduled scheduled -> draft，仅用于台账写入失败后的补偿
	RevertScheduled(ctx context.Context, id string, at time.Time) error
	// Publish scheduled -> published，同一事务写 outbox
	Publish(ctx context.Context, id string, at time.Time) error
	// MarkFailed scheduled -> failed
	MarkFailed(ctx context.Context, id string, at time.Time) error
	// PublishNow 新建并立即发布（作者直接发布路径）
	PublishNow(ctx context.Context, post *model.Post, at time.Time) error
}

type contentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) ContentRepository { return &contentRepository{db: db} }

func (r *contentRepository) Create(ctx context.Context, post *model.Post) error {
	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	if post.Status == "" {
		post.Status = model.PostDraft
	}
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *contentRepository) Get(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *contentRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Post{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrContentNotFound
	}
	return nil
}

func (r *contentRepository) ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]*model.Post, error) {
	var res []*model.Post
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *contentRepository) ListPublishedByIDs(ctx context.Context, ids []string) ([]*model.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var res []*model.Post
	err := r.db.WithContext(ctx).
		Where("id IN ? AND status = ?", ids, model.PostPublished).
		Find(&res).Error
	return res, err
}

func (r *contentRepository) MarkScheduled(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ? AND status IN ?", id, []model.PostStatus{model.PostDraft, model.PostFailed}).
		Updates(map[string]any{"status": model.PostScheduled, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrContentNotSchedulable
}

func (r *contentRepository) RevertScheduled(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ? AND status = ?", id, model.PostScheduled).
		Updates(map[string]any{"status": model.PostDraft, "updated_at": at}).Error
}

func (r *contentRepository) Publish(ctx context.Context, id string, at time.Time) error {
	var authorID string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Post{}).
			Where("id = ? AND status = ?", id, model.PostScheduled).
			Updates(map[string]any{"status": model.PostPublished, "published_at": at, "updated_at": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNoTransition
		}
		if err := tx.Model(&model.Post{}).Select("author_id").Where("id = ?", id).Scan(&authorID).Error; err != nil {
			return err
		}
		return tx.Create(newOutbox(id, authorID, at)).Error
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, errNoTransition) {
		return fmt.Errorf("publish content %s: %w", id, err)
	}

	post, gerr := r.Get(ctx, id)
	if gerr != nil {
		return gerr
	}
	if post.Status == model.PostPublished {
		return ErrContentAlreadyPublished
	}
	return fmt.Errorf("%w: status=%s", ErrContentNotPublishable, post.Status)
}

func (r *contentRepository) MarkFailed(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ? AND status = ?", id, model.PostScheduled).
		Updates(map[string]any{"status": model.PostFailed, "updated_at": at}).Error
}

func (r *contentRepository) PublishNow(ctx context.Context, post *model.Post, at time.Time) error {
	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	post.Status = model.PostPublished
	post.PublishedAt = &at
	post.CreatedAt = at
	post.UpdatedAt = at
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		return tx.Create(newOutbox(post.ID, post.AuthorID, at)).Error
	})
}

var errNoTransition = errors.New("no matching row")

func newOutbox(postID, authorID string, at time.Time) *model.Outbox {
	return &model.Outbox{
		ID:          uuid.New().String(),
		PostID:      postID,
		AuthorID:    authorID,
		PublishedAt: at,
		CreatedAt:   at,
		Status:      model.OutboxPending,
	}
}
