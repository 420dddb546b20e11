package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/testutil"
)

func TestReconciler_RepairsPublishedContent(t *testing.T) {
	env := newTriggerEnv(t)
	ctx := context.Background()

	// 尚未到期，但内容已经被发布
	row := env.schedule(t, "c1", testutil.Epoch.Add(time.Hour))
	publishedAt := testutil.Epoch.Add(-time.Minute)
	require.NoError(t, env.contents.Publish(ctx, "c1", publishedAt))

	// 仍在等待的正常行不受影响
	untouched := env.schedule(t, "c2", testutil.Epoch.Add(time.Hour))
	// 内容已删除的行留给触发器处理
	env.schedule(t, "c3", testutil.Epoch.Add(time.Hour))
	require.NoError(t, env.contents.Delete(ctx, "c3"))

	report, err := NewReconciler(env.contents, env.ledger, env.clock, 0).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, []PublishedPost{{ContentID: "c1", ScheduledPostID: row.ID}}, report.Repaired)
	assert.Empty(t, report.Errors)

	got := env.ledgerRow(t, row.ID)
	assert.Equal(t, model.LedgerPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(publishedAt))
	assert.Equal(t, model.LedgerPending, env.ledgerRow(t, untouched.ID).Status)
	assert.Equal(t, model.PostScheduled, env.post(t, "c2").Status)

	again, err := NewReconciler(env.contents, env.ledger, env.clock, 0).Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Repaired)
}
