// Package scheduling 定时发布的时间选择：本地日期+时间合成时刻、"+N" 快捷选项、
// 提交时的"必须晚于当前时间"校验。本包不访问存储，确认后的 Intent 交给 Submitter 持久化。
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/d60-Lab/freed/pkg/clock"
)

// 与 HTML date/time 输入框一致的格式
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrNotFuture      = errors.New("scheduled time must be in the future")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidTime    = errors.New("invalid time")
	ErrUnknownOption  = errors.New("unknown quick option")
	ErrSubmitFailed   = errors.New("schedule submission failed")
	ErrMissingContent = errors.New("content id is required")
)

// ValidationError 选择无法提交。Confirm 返回它时 Submitter 不会被调用
type ValidationError struct {
	Field  string
	Reason error
	At     time.Time // 合成后的时刻，无法合成时为零值
	Now    time.Time
}

func (e *ValidationError) Error() string {
	if e.At.IsZero() {
		return fmt.Sprintf("%s: %v", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %v (selected %s, now %s)", e.Field, e.Reason,
		e.At.Format(time.RFC3339), e.Now.Format(time.RFC3339))
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// Selection 用户编辑的本地日期与时间。
// At 由快捷选项预填时携带精确时刻；夏令时回拨的重复钟点只靠 Date/Time 无法区分
type Selection struct {
	Date string    `json:"date"`
	Time string    `json:"time"`
	At   time.Time `json:"-"`
}

// Instant 在 loc 中合成时刻。At 与 Date/Time 仍一致时直接用 At，用户改过输入则重新解析
func (s Selection) Instant(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d := strings.TrimSpace(s.Date)
	tm := strings.TrimSpace(s.Time)
	if !s.At.IsZero() {
		if shown := SelectionAt(s.At, loc); shown.Date == d && shown.Time == tm {
			return s.At, nil
		}
	}
	if _, err := time.Parse(DateLayout, d); err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: ErrInvalidDate}
	}
	if _, err := time.Parse(TimeLayout, tm); err != nil {
		return time.Time{}, &ValidationError{Field: "time", Reason: ErrInvalidTime}
	}
	at, err := time.ParseInLocation(DateLayout+" "+TimeLayout, d+" "+tm, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: ErrInvalidDate}
	}
	return at, nil
}

// SelectionAt 把 t 渲染成 loc 下的输入框取值
func SelectionAt(t time.Time, loc *time.Location) Selection {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return Selection{Date: lt.Format(DateLayout), Time: lt.Format(TimeLayout)}
}

// QuickOption 相对当前时间的预设偏移
type QuickOption struct {
	Label  string        `json:"label"`
	Offset time.Duration `json:"offset" swaggertype:"integer"`
}

// QuickOptions 按此顺序展示
var QuickOptions = []QuickOption{
	{Label: "+1 hour", Offset: time.Hour},
	{Label: "+3 hours", Offset: 3 * time.Hour},
	{Label: "+6 hours", Offset: 6 * time.Hour},
	{Label: "+1 day", Offset: 24 * time.Hour},
	{Label: "+3 days", Offset: 3 * 24 * time.Hour},
	{Label: "+1 week", Offset: 7 * 24 * time.Hour},
}

func QuickOptionByLabel(label string) (QuickOption, error) {
	for _, o := range QuickOptions {
		if o.Label == label {
			return o, nil
		}
	}
	return QuickOption{}, fmt.Errorf("%w: %q", ErrUnknownOption, label)
}

// ApplyQuickOption 用 now+offset 预填输入框，纯函数。
// 输入框只到分钟，At 保留精确时刻
func ApplyQuickOption(now time.Time, opt QuickOption, loc *time.Location) Selection {
	at := now.Add(opt.Offset)
	sel := SelectionAt(at, loc)
	sel.At = at
	return sel
}

// Intent 需要持久化的内容：哪条内容、何时发布
type Intent struct {
	ContentID string
	PublishAt time.Time
}

// Submitter 持久化一次定时意图，实现在本包之外
type Submitter interface {
	SubmitSchedule(ctx context.Context, intent Intent) error
}

type SubmitterFunc func(ctx context.Context, intent Intent) error

func (f SubmitterFunc) SubmitSchedule(ctx context.Context, intent Intent) error { return f(ctx, intent) }

// Request 一个打开的时间选择器，绑定时区与时钟
type Request struct {
	clock  clock.Clock
	loc    *time.Location
	submit Submitter
}

func NewRequest(c clock.Clock, loc *time.Location, submit Submitter) *Request {
	if c == nil {
		c = clock.Real()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Request{clock: c, loc: loc, submit: submit}
}

func (r *Request) Location() *time.Location { return r.loc }

// Prefill 按当前时间应用快捷选项
func (r *Request) Prefill(opt QuickOption) Selection {
	return ApplyQuickOption(r.clock.Now(), opt, r.loc)
}

// Validate 以调用时的时钟校验 sel。minAllowed 晚于 now 时抬高下限，时刻必须严格晚于下限
func (r *Request) Validate(sel Selection, minAllowed time.Time) (time.Time, error) {
	at, err := sel.Instant(r.loc)
	if err != nil {
		return time.Time{}, err
	}
	now := r.clock.Now()
	bound := now
	if minAllowed.After(bound) {
		bound = minAllowed
	}
	if !at.After(bound) {
		return time.Time{}, &ValidationError{Field: "time", Reason: ErrNotFuture, At: at, Now: now}
	}
	return at, nil
}

// Confirm 提交时重新校验，通过后才调用 Submitter
func (r *Request) Confirm(ctx context.Context, contentID string, sel Selection, minAllowed time.Time) (Intent, error) {
	if strings.TrimSpace(contentID) == "" {
		return Intent{}, &ValidationError{Field: "content_id", Reason: ErrMissingContent}
	}
	at, err := r.Validate(sel, minAllowed)
	if err != nil {
		return Intent{}, err
	}
	intent := Intent{ContentID: contentID, PublishAt: at.UTC()}
	if err := r.submit.SubmitSchedule(ctx, intent); err != nil {
		return Intent{}, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	return intent, nil
}
