package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/freed/config"
	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/pkg/logger"
)

// zapWriter 把 gorm 日志转发到全局 zap logger
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	logger.L().Sugar().Infof(format, args...)
}

func gormLevel(s string) gormlogger.LogLevel {
	switch strings.ToLower(s) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// InitDB 按配置打开数据库连接池
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dc := cfg.Database
	var dialector gorm.Dialector
	switch dc.Driver {
	case "postgres":
		dialector = postgres.Open(dc.DSN)
	case "sqlite":
		dialector = sqlite.Open(dc.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, dc.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(zapWriter{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLevel(dc.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dc.Driver == "sqlite" {
		// sqlite 单写者
		sqlDB.SetMaxOpenConns(1)
	} else {
		if dc.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(dc.MaxOpenConns)
		}
		if dc.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(dc.MaxIdleConns)
		}
	}
	if dc.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(dc.ConnMaxLifetime)
	}
	return db, nil
}

// Models 返回需要迁移的全部表
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Follow{},
		&model.Fan{},
		&model.Post{},
		&model.ScheduledPost{},
		&model.Outbox{},
		&model.Inbox{},
	}
}

// Migrate 自动建表（含 scheduled_posts 的 (status, scheduled_for) 索引与部分唯一索引）
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Close 关闭底层连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
