package model

import "time"

// Inbox 读者时间线项，fanout 写入；只引用已发布的 post
type Inbox struct {
	ID       string `gorm:"primaryKey;type:varchar(36)"`
	UserID   string `gorm:"type:varchar(36);index:idx_inbox_user_score,priority:1;uniqueIndex:ux_inbox_user_post"`
	PostID   string `gorm:"type:varchar(36);index:idx_inbox_post;uniqueIndex:ux_inbox_user_post"`
	AuthorID string `gorm:"type:varchar(36)"`
	// Score 取发布时间（UnixNano），时间线按 score DESC 翻页
	Score     int64 `gorm:"index:idx_inbox_user_score,priority:2"`
	CreatedAt time.Time
}

func (Inbox) TableName() string { return "inbox" }
