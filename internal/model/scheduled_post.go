package model

import "time"

// LedgerStatus 定时发布记录状态。pending 为初始态，published/failed 为终态
type LedgerStatus string

const (
	LedgerPending   LedgerStatus = "pending"
	LedgerPublished LedgerStatus = "published"
	LedgerFailed    LedgerStatus = "failed"
)

// Terminal 终态不再迁移
func (s LedgerStatus) Terminal() bool {
	return s == LedgerPublished || s == LedgerFailed
}

// ScheduledPost 定时发布台账，一行对应一次定时意图，永不删除（审计用）。
//
// idx_sched_due = (status, scheduled_for) 支撑到期扫描；
// ux_sched_active 保证同一内容最多一条 pending 记录。
type ScheduledPost struct {
	ID           string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ContentID    string       `json:"content_id" gorm:"type:varchar(36);not null;index:idx_sched_content;uniqueIndex:ux_sched_active,where:status = 'pending'"`
	ScheduledFor time.Time    `json:"scheduled_for" gorm:"not null;index:idx_sched_due,priority:2"`
	Status       LedgerStatus `json:"status" gorm:"type:varchar(16);not null;default:pending;index:idx_sched_due,priority:1"`
	Error        string       `json:"error,omitempty" gorm:"type:text"`
	PublishedAt  *time.Time   `json:"published_at,omitempty"`
	RequestedBy  string       `json:"requested_by" gorm:"type:varchar(36)"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (ScheduledPost) TableName() string { return "scheduled_posts" }
