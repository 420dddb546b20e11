package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/internal/scheduling"
	"github.com/d60-Lab/freed/pkg/clock"
	"github.com/d60-Lab/freed/pkg/logger"
)

// ScheduleService 持久化定时意图：内容 draft->scheduled，台账新增 pending 行
type ScheduleService interface {
	Schedule(ctx context.Context, actorID string, intent scheduling.Intent) (*model.ScheduledPost, error)
	// Submitter 绑定操作者，供 scheduling.Request 提交
	Submitter(actorID string, created *model.ScheduledPost) scheduling.Submitter
	History(ctx context.Context, actorID, contentID string) ([]*model.ScheduledPost, error)
	Stats(ctx context.Context) (map[model.LedgerStatus]int64, error)
}

type scheduleService struct {
	contents repository.ContentRepository
	ledger   repository.LedgerRepository
	authz    Authorizer
	clock    clock.Clock
}

func NewScheduleService(contents repository.ContentRepository, ledger repository.LedgerRepository, authz Authorizer, clk clock.Clock) ScheduleService {
	if clk == nil {
		clk = clock.Real()
	}
	return &scheduleService{contents: contents, ledger: ledger, authz: authz, clock: clk}
}

func (s *scheduleService) authorize(ctx context.Context, actorID, contentID string) error {
	ok, err := s.authz.CanSchedule(ctx, actorID, contentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *scheduleService) Schedule(ctx context.Context, actorID string, intent scheduling.Intent) (*model.ScheduledPost, error) {
	if err := s.authorize(ctx, actorID, intent.ContentID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !intent.PublishAt.After(now) {
		return nil, fmt.Errorf("%w: %s is not after %s", ErrNotFuture, intent.PublishAt.UTC(), now)
	}

	// 先占住内容状态：并发的两个定时请求只有一个能把 draft 翻成 scheduled
	if err := s.contents.MarkScheduled(ctx, intent.ContentID, now); err != nil {
		return nil, err
	}

	row := &model.ScheduledPost{
		ContentID:    intent.ContentID,
		ScheduledFor: intent.PublishAt.UTC(),
		RequestedBy:  actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.ledger.CreatePending(ctx, row); err != nil {
		if rerr := s.contents.RevertScheduled(ctx, intent.ContentID, s.clock.Now()); rerr != nil {
			logger.Error("revert scheduled content failed",
				zap.String("content_id", intent.ContentID),
				zap.Error(rerr),
			)
		}
		if errors.Is(err, repository.ErrActiveScheduleExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	logger.Info("content scheduled",
		zap.String("content_id", row.ContentID),
		zap.String("scheduled_post_id", row.ID),
		zap.Time("scheduled_for", row.ScheduledFor),
		zap.String("actor", actorID),
	)
	return row, nil
}

func (s *scheduleService) Submitter(actorID string, created *model.ScheduledPost) scheduling.Submitter {
	return scheduling.SubmitterFunc(func(ctx context.Context, intent scheduling.Intent) error {
		row, err := s.Schedule(ctx, actorID, intent)
		if err != nil {
			return err
		}
		if created != nil {
			*created = *row
		}
		return nil
	})
}

func (s *scheduleService) History(ctx context.Context, actorID, contentID string) ([]*model.ScheduledPost, error) {
	if err := s.authorize(ctx, actorID, contentID); err != nil {
		return nil, err
	}
	return s.ledger.ListByContent(ctx, contentID)
}

func (s *scheduleService) Stats(ctx context.Context) (map[model.LedgerStatus]int64, error) {
	return s.ledger.CountByStatus(ctx)
}
