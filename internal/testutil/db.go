// Package testutil 测试共用的数据库与时间工具
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/pkg/database"
)

// Epoch 测试统一的起始时间
var Epoch = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

// NewDB 为每个测试创建独立的共享内存 sqlite 库并完成迁移
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedPost 直接写入一条内容
func SeedPost(t testing.TB, db *gorm.DB, id, authorID string, status model.PostStatus) *model.Post {
	t.Helper()
	p := &model.Post{
		ID:        id,
		AuthorID:  authorID,
		Title:     "title " + id,
		Payload:   datatypes.JSON(`{"body":"hello"}`),
		Status:    status,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return p
}

// SeedPending 直接写入一条 pending 台账
func SeedPending(t testing.TB, db *gorm.DB, id, contentID string, at time.Time) *model.ScheduledPost {
	t.Helper()
	row := &model.ScheduledPost{
		ID:           id,
		ContentID:    contentID,
		ScheduledFor: at.UTC(),
		Status:       model.LedgerPending,
		RequestedBy:  "seed",
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	return row
}
