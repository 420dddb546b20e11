package repository

import "errors"

var (
	ErrContentNotFound         = errors.New("content not found")
	ErrContentNotSchedulable   = errors.New("content is not in a schedulable state")
	ErrContentNotPublishable   = errors.New("content is not in a publishable state")
	ErrContentAlreadyPublished = errors.New("content already published")

	ErrScheduleNotFound = errors.New("scheduled publication not found")
	// ErrLedgerNotPending 条件更新未命中：该行已被其它调用推进到终态
	ErrLedgerNotPending = errors.New("scheduled publication is no longer pending")
	// ErrActiveScheduleExists 同一内容已存在 pending 记录
	ErrActiveScheduleExists = errors.New("content already has an active scheduled publication")
)
