package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/pkg/clock"
	"github.com/d60-Lab/freed/pkg/logger"
	"github.com/d60-Lab/freed/pkg/sentryx"
	"github.com/d60-Lab/freed/pkg/tracing"
)

// 致命错误码，整次调用在处理任何行之前中止
const (
	CodeSetupFailed       = "SETUP_FAILED"
	CodeLedgerUnavailable = "LEDGER_UNAVAILABLE"
)

// TriggerError 整次调用级别的错误，对外序列化为 {error: {code, message}}
type TriggerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *TriggerError) Error() string { return e.Code + ": " + e.Message }
func (e *TriggerError) Unwrap() error { return e.Err }

// PublishedPost 本次成功发布的一行
type PublishedPost struct {
	ContentID       string `json:"content_id"`
	ScheduledPostID string `json:"scheduled_post_id"`
}

// RowError 单行错误
type RowError struct {
	ContentID       string `json:"content_id"`
	ScheduledPostID string `json:"scheduled_post_id"`
	Error           string `json:"error"`
}

// RunSummary 一次调用的完整结果，是触发器唯一的可观测单元。
// Inconsistencies 记录内容已发布但台账未写成功的行，不计入 Failed。
type RunSummary struct {
	TotalScheduled  int             `json:"total_scheduled"`
	Published       int             `json:"published"`
	Failed          int             `json:"failed"`
	Skipped         int             `json:"skipped"`
	Inconsistent    int             `json:"inconsistent"`
	PublishedPosts  []PublishedPost `json:"published_posts"`
	Errors          []RowError      `json:"errors"`
	Inconsistencies []RowError      `json:"inconsistencies"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
}

func newSummary(start time.Time) *RunSummary {
	return &RunSummary{
		PublishedPosts:  []PublishedPost{},
		Errors:          []RowError{},
		Inconsistencies: []RowError{},
		StartedAt:       start,
	}
}

// Degraded 存在失败或不一致
func (s *RunSummary) Degraded() bool { return s.Failed > 0 || s.Inconsistent > 0 }

type rowOutcome int

const (
	outcomePublished rowOutcome = iota + 1
	outcomeFailed
	outcomeSkipped
	outcomeInconsistent
)

func (o rowOutcome) String() string {
	switch o {
	case outcomePublished:
		return "published"
	case outcomeFailed:
		return "failed"
	case outcomeSkipped:
		return "skipped"
	case outcomeInconsistent:
		return "inconsistent"
	}
	return "unknown"
}

// TriggerOptions 可选依赖，零值可用
type TriggerOptions struct {
	BatchSize int
	Clock     clock.Clock
	Reporter  sentryx.Reporter
	Logger    *zap.Logger
}

// PublicationTrigger 扫描到期台账并逐行推进发布。
// 无状态：每次 Run 相互独立，不持有定时器，由外部调用器周期触发。
// 并发调用的正确性完全依赖两个存储上的条件更新。
type PublicationTrigger struct {
	contents  repository.ContentRepository
	ledger    repository.LedgerRepository
	batchSize int
	clock     clock.Clock
	reporter  sentryx.Reporter
	log       *zap.Logger
}

func NewPublicationTrigger(contents repository.ContentRepository, ledger repository.LedgerRepository, opts TriggerOptions) *PublicationTrigger {
	t := &PublicationTrigger{
		contents:  contents,
		ledger:    ledger,
		batchSize: opts.BatchSize,
		clock:     opts.Clock,
		reporter:  opts.Reporter,
		log:       opts.Logger,
	}
	if t.clock == nil {
		t.clock = clock.Real()
	}
	if t.reporter == nil {
		t.reporter = sentryx.Nop{}
	}
	if t.log == nil {
		t.log = logger.L()
	}
	return t
}

// Run 执行一次扫描。返回的 error 只可能是 *TriggerError；单行错误全部进入 summary。
func (t *PublicationTrigger) Run(ctx context.Context) (*RunSummary, error) {
	if t == nil || t.contents == nil || t.ledger == nil {
		return nil, &TriggerError{Code: CodeSetupFailed, Message: "content store and ledger must be configured"}
	}

	// 已开始的调用跑完为止，不响应取消
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracing.Tracer("trigger").Start(ctx, "trigger.run")
	defer span.End()

	now := t.clock.Now()
	summary := newSummary(now)

	due, err := t.ledger.ListDue(ctx, now, t.batchSize)
	if err != nil {
		terr := &TriggerError{Code: CodeLedgerUnavailable, Message: "failed to query due scheduled posts", Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, terr.Code)
		t.reporter.Fatal(terr.Code, err)
		t.log.Error("publication trigger aborted", zap.String("code", terr.Code), zap.Error(err))
		return nil, terr
	}
	summary.TotalScheduled = len(due)

	for _, row := range due {
		outcome, rowErr := t.process(ctx, row, now)
		switch outcome {
		case outcomePublished:
			summary.Published++
			summary.PublishedPosts = append(summary.PublishedPosts, PublishedPost{ContentID: row.ContentID, ScheduledPostID: row.ID})
		case outcomeFailed:
			summary.Failed++
			summary.Errors = append(summary.Errors, RowError{ContentID: row.ContentID, ScheduledPostID: row.ID, Error: rowErr.Error()})
		case outcomeSkipped:
			summary.Skipped++
		case outcomeInconsistent:
			summary.Inconsistent++
			summary.Inconsistencies = append(summary.Inconsistencies, RowError{ContentID: row.ContentID, ScheduledPostID: row.ID, Error: rowErr.Error()})
		}
	}

	summary.FinishedAt = t.clock.Now()
	span.SetAttributes(
		attribute.Int("trigger.total", summary.TotalScheduled),
		attribute.Int("trigger.published", summary.Published),
		attribute.Int("trigger.failed", summary.Failed),
		attribute.Int("trigger.skipped", summary.Skipped),
		attribute.Int("trigger.inconsistent", summary.Inconsistent),
	)

	fields := []zap.Field{
		zap.Int("total", summary.TotalScheduled),
		zap.Int("published", summary.Published),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("inconsistent", summary.Inconsistent),
	}
	if summary.Degraded() {
		t.log.Warn("publication trigger finished with errors", fields...)
	} else {
		t.log.Info("publication trigger finished", fields...)
	}
	return summary, nil
}

// process 推进单行；任何错误都被吸收为该行的结果，不会中断批次
func (t *PublicationTrigger) process(ctx context.Context, row *model.ScheduledPost, now time.Time) (rowOutcome, error) {
	ctx, span := tracing.Tracer("trigger").Start(ctx, "trigger.row")
	defer span.End()
	span.SetAttributes(
		attribute.String("content.id", row.ContentID),
		attribute.String("scheduled_post.id", row.ID),
	)

	log := t.log.With(zap.String("content_id", row.ContentID), zap.String("scheduled_post_id", row.ID))
	publishedAt := now

	err := t.contents.Publish(ctx, row.ContentID, now)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrContentAlreadyPublished):
		// 上次台账写入失败留下的行，或并发调用已发布内容：只补写台账
		if post, gerr := t.contents.Get(ctx, row.ContentID); gerr == nil && post.PublishedAt != nil {
			publishedAt = *post.PublishedAt
		}
		log.Info("content already published, completing ledger row")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "content transition failed")
		return t.fail(ctx, log, row, err, now)
	}

	if err := t.ledger.MarkPublished(ctx, row.ID, publishedAt); err != nil {
		if errors.Is(err, repository.ErrLedgerNotPending) {
			log.Info("ledger row already terminal, skipping")
			return outcomeSkipped, nil
		}
		// 内容已经可见，不回滚；行保持 pending，下一次调用走上面的补写分支
		ierr := fmt.Errorf("content published but ledger update failed: %w", err)
		span.RecordError(ierr)
		span.SetStatus(codes.Error, "ledger inconsistency")
		log.Error("scheduled publication inconsistency", zap.Error(err))
		t.reporter.Inconsistency(row.ContentID, row.ID, ierr)
		return outcomeInconsistent, ierr
	}

	log.Info("scheduled content published", zap.Time("published_at", publishedAt))
	return outcomePublished, nil
}

func (t *PublicationTrigger) fail(ctx context.Context, log *zap.Logger, row *model.ScheduledPost, cause error, now time.Time) (rowOutcome, error) {
	lerr := t.ledger.MarkFailed(ctx, row.ID, cause.Error(), now)
	if errors.Is(lerr, repository.ErrLedgerNotPending) {
		log.Info("ledger row already terminal, skipping", zap.NamedError("content_error", cause))
		return outcomeSkipped, nil
	}
	if lerr != nil {
		log.Error("failed to record ledger failure, row stays pending",
			zap.NamedError("content_error", cause), zap.Error(lerr))
	} else if !errors.Is(cause, repository.ErrContentNotFound) {
		// 保持 "scheduled 当且仅当存在 pending 行"
		if merr := t.contents.MarkFailed(ctx, row.ContentID, now); merr != nil {
			log.Warn("failed to mark content failed", zap.Error(merr))
		}
	}
	log.Warn("scheduled publication failed", zap.Error(cause))
	return outcomeFailed, cause
}
