package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/pkg/clock"
	"github.com/d60-Lab/freed/pkg/logger"
)

var ErrEmptyTitle = errors.New("title is required")

// CreateContentInput 作者提交的内容；Payload 原样保存
type CreateContentInput struct {
	Title      string
	Payload    json.RawMessage
	PublishNow bool
}

// ContentService 作者侧内容管理（草稿 / 立即发布 / 删除）
type ContentService interface {
	Create(ctx context.Context, authorID string, in CreateContentInput) (*model.Post, error)
	Get(ctx context.Context, actorID, id string) (*model.Post, error)
	Delete(ctx context.Context, actorID, id string) error
	ListMine(ctx context.Context, actorID string, page, pageSize int) ([]*model.Post, error)
}

type contentService struct {
	contents repository.ContentRepository
	authz    Authorizer
	clock    clock.Clock
}

func NewContentService(contents repository.ContentRepository, authz Authorizer, clk clock.Clock) ContentService {
	if clk == nil {
		clk = clock.Real()
	}
	return &contentService{contents: contents, authz: authz, clock: clk}
}

// Create 草稿直接落库；立即发布时 post 与 outbox 在同一事务写入
func (s *contentService) Create(ctx context.Context, authorID string, in CreateContentInput) (*model.Post, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, ErrEmptyTitle
	}
	payload := datatypes.JSON(in.Payload)
	if len(payload) == 0 {
		payload = datatypes.JSON("{}")
	}
	now := s.clock.Now()
	post := &model.Post{
		ID:        uuid.New().String(),
		AuthorID:  authorID,
		Title:     in.Title,
		Payload:   payload,
		Status:    model.PostDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.PublishNow {
		if err := s.contents.PublishNow(ctx, post, now); err != nil {
			return nil, err
		}
		logger.Info("content published", zap.String("content_id", post.ID), zap.String("author", authorID))
		return post, nil
	}
	if err := s.contents.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Get 已发布内容对所有人可见，其它状态只有作者可见
func (s *contentService) Get(ctx context.Context, actorID, id string) (*model.Post, error) {
	post, err := s.contents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Status != model.PostPublished && post.AuthorID != actorID {
		return nil, repository.ErrContentNotFound
	}
	return post, nil
}

func (s *contentService) Delete(ctx context.Context, actorID, id string) error {
	ok, err := s.authz.CanSchedule(ctx, actorID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return s.contents.Delete(ctx, id)
}

func (s *contentService) ListMine(ctx context.Context, actorID string, page, pageSize int) ([]*model.Post, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.contents.ListByAuthor(ctx, actorID, (page-1)*pageSize, pageSize)
}
