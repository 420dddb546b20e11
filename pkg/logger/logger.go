// Package logger 全局 zap 日志
package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/d60-Lab/freed/config"
)

var global atomic.Pointer[zap.Logger]

func init() {
	global.Store(zap.NewNop())
}

// Init 按配置构建全局 logger
func Init(cfg config.LogConfig) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	global.Store(l)
	return nil
}

// New 构建一个独立的 logger，不修改全局实例
func New(cfg config.LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	if strings.EqualFold(cfg.Format, "console") {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(orDefault(cfg.Level, "info"))
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	out := orDefault(cfg.Output, "stdout")
	zc.OutputPaths = []string{out}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}

// Set 替换全局 logger（测试中常用 zaptest / observer）
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	global.Store(l)
}

// L 返回全局 logger
func L() *zap.Logger { return global.Load() }

func Debug(msg string, fields ...zap.Field) { L().WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...) }

// Sync 刷新缓冲区，进程退出前调用
func Sync() {
	_ = L().Sync()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
