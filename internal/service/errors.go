package service

import "errors"

var (
	ErrFollowSelf = errors.New("cannot follow self")

	ErrForbidden   = errors.New("actor is not allowed to modify this content")
	ErrNotFuture   = errors.New("scheduled time must be in the future")
	ErrPersistence = errors.New("failed to persist scheduling intent")
)
