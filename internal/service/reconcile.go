package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/pkg/clock"
	"github.com/d60-Lab/freed/pkg/logger"
)

// ReconcileReport 对账结果
type ReconcileReport struct {
	Checked  int             `json:"checked"`
	Repaired []PublishedPost `json:"repaired"`
	Errors   []RowError      `json:"errors"`
}

// Reconciler 修复 "内容已发布、台账仍 pending" 的行。只写台账，从不改动内容状态。
// 触发器在下次到期扫描时也会走同样的补写路径；Reconciler 不看到期时间，
// 覆盖尚未到期但内容已被直接发布的行。
type Reconciler struct {
	contents repository.ContentRepository
	ledger   repository.LedgerRepository
	clock    clock.Clock
	limit    int
}

func NewReconciler(contents repository.ContentRepository, ledger repository.LedgerRepository, clk clock.Clock, limit int) *Reconciler {
	if clk == nil {
		clk = clock.Real()
	}
	return &Reconciler{contents: contents, ledger: ledger, clock: clk, limit: limit}
}

func (r *Reconciler) Sweep(ctx context.Context) (*ReconcileReport, error) {
	rows, err := r.ledger.ListPending(ctx, r.limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	report := &ReconcileReport{Checked: len(rows), Repaired: []PublishedPost{}, Errors: []RowError{}}

	for _, row := range rows {
		post, err := r.contents.Get(ctx, row.ContentID)
		if errors.Is(err, repository.ErrContentNotFound) {
			// 到期后由触发器记为 failed
			continue
		}
		if err != nil {
			report.Errors = append(report.Errors, RowError{ContentID: row.ContentID, ScheduledPostID: row.ID, Error: err.Error()})
			continue
		}
		if post.Status != model.PostPublished {
			continue
		}

		at := r.clock.Now()
		if post.PublishedAt != nil {
			at = *post.PublishedAt
		}
		err = r.ledger.MarkPublished(ctx, row.ID, at)
		switch {
		case err == nil:
			report.Repaired = append(report.Repaired, PublishedPost{ContentID: row.ContentID, ScheduledPostID: row.ID})
			logger.Info("reconciled ledger row",
				zap.String("content_id", row.ContentID),
				zap.String("scheduled_post_id", row.ID),
			)
		case errors.Is(err, repository.ErrLedgerNotPending):
		default:
			report.Errors = append(report.Errors, RowError{ContentID: row.ContentID, ScheduledPostID: row.ID, Error: err.Error()})
		}
	}
	return report, nil
}
