// Package sentryx 初始化 Sentry 并封装上报；未配置 DSN 时所有调用都是 no-op
package sentryx

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/d60-Lab/freed/config"
)

// Init 初始化全局 hub，返回 flush 函数
func Init(cfg config.SentryConfig) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// Reporter 触发器使用的上报接口，测试中可替换
type Reporter interface {
	Inconsistency(contentID, scheduledPostID string, err error)
	Fatal(code string, err error)
}

type hubReporter struct{}

// NewReporter 基于全局 hub 的实现
func NewReporter() Reporter { return hubReporter{} }

func (hubReporter) Inconsistency(contentID, scheduledPostID string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("component", "publication-trigger")
		scope.SetTag("kind", "ledger_inconsistency")
		scope.SetExtra("content_id", contentID)
		scope.SetExtra("scheduled_post_id", scheduledPostID)
		sentry.CaptureException(err)
	})
}

func (hubReporter) Fatal(code string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelFatal)
		scope.SetTag("component", "publication-trigger")
		scope.SetTag("code", code)
		sentry.CaptureException(err)
	})
}

// Nop 丢弃所有上报
type Nop struct{}

func (Nop) Inconsistency(string, string, error) {}
func (Nop) Fatal(string, error)                 {}
