package service

import (
	"context"

	"github.com/d60-Lab/freed/internal/repository"
)

// RelationshipService 关系链服务；feed 聚合依赖 fans 冗余表
type RelationshipService interface {
	Follow(ctx context.Context, fromUserID, toUserID string) error
	Unfollow(ctx context.Context, fromUserID, toUserID string) error
	IsFollowing(ctx context.Context, fromUserID, toUserID string) (bool, error)
	ListFollowing(ctx context.Context, userID string, page, pageSize int) ([]string, error)
	ListFans(ctx context.Context, userID string, page, pageSize int) ([]string, error)
	// RepairFans 以 follows 主表为准重建某作者的 fans 冗余
	RepairFans(ctx context.Context, userID string) (int, error)
}

type relationshipService struct {
	followRepo repository.FollowRepository
	fanRepo    repository.FanRepository
	replicator *FanReplicator
}

func NewRelationshipService(followRepo repository.FollowRepository, fanRepo repository.FanRepository, replicator *FanReplicator) RelationshipService {
	return &relationshipService{followRepo: followRepo, fanRepo: fanRepo, replicator: replicator}
}

func (s *relationshipService) Follow(ctx context.Context, fromUserID, toUserID string) error {
	if fromUserID == toUserID {
		return ErrFollowSelf
	}
	if err := s.followRepo.Create(ctx, fromUserID, toUserID); err != nil {
		return err
	}
	if s.replicator != nil {
		s.replicator.EnqueueAdd(toUserID, fromUserID)
		return nil
	}
	return s.fanRepo.Create(ctx, toUserID, fromUserID)
}

func (s *relationshipService) Unfollow(ctx context.Context, fromUserID, toUserID string) error {
	if err := s.followRepo.Delete(ctx, fromUserID, toUserID); err != nil {
		return err
	}
	if s.replicator != nil {
		s.replicator.EnqueueRemove(toUserID, fromUserID)
		return nil
	}
	return s.fanRepo.Delete(ctx, toUserID, fromUserID)
}

func (s *relationshipService) IsFollowing(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	return s.followRepo.Exists(ctx, fromUserID, toUserID)
}

func pageBounds(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return (page - 1) * pageSize, pageSize
}

func (s *relationshipService) ListFollowing(ctx context.Context, userID string, page, pageSize int) ([]string, error) {
	offset, limit := pageBounds(page, pageSize)
	items, err := s.followRepo.ListFollowings(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(items))
	for i, it := range items {
		res[i] = it.FolloweeID
	}
	return res, nil
}

func (s *relationshipService) ListFans(ctx context.Context, userID string, page, pageSize int) ([]string, error) {
	offset, limit := pageBounds(page, pageSize)
	items, err := s.fanRepo.ListFans(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(items))
	for i, it := range items {
		res[i] = it.FanID
	}
	return res, nil
}

func (s *relationshipService) RepairFans(ctx context.Context, userID string) (int, error) {
	ids, err := s.followRepo.ListFollowerIDs(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, fanID := range ids {
		if err := s.fanRepo.Create(ctx, userID, fanID); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
