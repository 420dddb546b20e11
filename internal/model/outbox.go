package model

import "time"

// OutboxStatus 外发事件状态
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxDone       OutboxStatus = "done"
)

// Outbox 发布事件外发盒：post 进入 published 时在同一本地事务写入，fanout worker 消费
type Outbox struct {
	ID          string       `gorm:"primaryKey;type:varchar(36)"`
	PostID      string       `gorm:"type:varchar(36);uniqueIndex"`
	AuthorID    string       `gorm:"type:varchar(36);index:idx_outbox_author"`
	PublishedAt time.Time
	CreatedAt   time.Time    `gorm:"index"`
	Status      OutboxStatus `gorm:"type:varchar(16);index"`
	ProcessedAt *time.Time
	FanoutCount int64
}

func (Outbox) TableName() string { return "outbox" }
