package service

import (
	"context"

	"github.com/d60-Lab/freed/internal/repository"
)

// Authorizer 身份/授权协作方：只回答 "该用户能否定时/修改这条内容"
type Authorizer interface {
	CanSchedule(ctx context.Context, actorID, contentID string) (bool, error)
}

// AuthorizerFunc 函数适配
type AuthorizerFunc func(ctx context.Context, actorID, contentID string) (bool, error)

func (f AuthorizerFunc) CanSchedule(ctx context.Context, actorID, contentID string) (bool, error) {
	return f(ctx, actorID, contentID)
}

// ownerAuthorizer 作者本人才能定时；内容不存在时返回 ErrContentNotFound 交给调用方映射 404
type ownerAuthorizer struct {
	contents repository.ContentRepository
}

func NewOwnerAuthorizer(contents repository.ContentRepository) Authorizer {
	return &ownerAuthorizer{contents: contents}
}

func (a *ownerAuthorizer) CanSchedule(ctx context.Context, actorID, contentID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	post, err := a.contents.Get(ctx, contentID)
	if err != nil {
		return false, err
	}
	return post.AuthorID == actorID, nil
}
