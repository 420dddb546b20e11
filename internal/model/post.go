package model

import (
	"time"

	"gorm.io/datatypes"
)

// PostStatus 内容可见性状态
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostScheduled PostStatus = "scheduled"
	PostPublished PostStatus = "published"
	PostFailed    PostStatus = "failed"
)

// Schedulable 草稿或上次定时失败的内容可以重新定时
func (s PostStatus) Schedulable() bool {
	return s == PostDraft || s == PostFailed
}

// Post 内容主体。Payload 对发布流程不透明，只原样存取
type Post struct {
	ID          string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AuthorID    string         `json:"author_id" gorm:"type:varchar(36);index:idx_post_author;not null"`
	Title       string         `json:"title" gorm:"type:varchar(255)"`
	Payload     datatypes.JSON `json:"payload" swaggertype:"object"`
	Status      PostStatus     `json:"status" gorm:"type:varchar(16);index;not null;default:draft"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }
