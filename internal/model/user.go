package model

import "time"

// User 创作者/读者（身份由外部认证服务签发，这里只保存资料）
type User struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Username    string `gorm:"type:varchar(64);uniqueIndex"`
	Email       string `gorm:"type:varchar(255)"`
	DisplayName string `gorm:"type:varchar(128)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (User) TableName() string { return "users" }
