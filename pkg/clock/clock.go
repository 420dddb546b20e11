// Package clock 提供可注入的时间源。触发器与定时请求都从这里读 "now"，
// 测试中用 Manual 控制时间推进。
package clock

import (
	"sync"
	"time"
)

// Clock 时间源
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Real 系统时钟；返回 UTC 并截断到微秒（与 Postgres timestamp 精度一致）
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// Manual 手动推进的时钟，并发安全
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance 向前推进 d
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t.UTC()
}

// Func 适配普通函数
type Func func() time.Time

func (f Func) Now() time.Time { return f() }
