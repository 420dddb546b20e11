package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/internal/scheduling"
	"github.com/d60-Lab/freed/internal/testutil"
)

// brokenLedger CreatePending 总是失败
type brokenLedger struct {
	repository.LedgerRepository
	err error
}

func (b brokenLedger) CreatePending(context.Context, *model.ScheduledPost) error { return b.err }

func TestSchedule_PersistsPendingRow(t *testing.T) {
	env := newTriggerEnv(t)
	ctx := context.Background()
	testutil.SeedPost(t, env.db, "c1", "author", model.PostDraft)
	svc := NewScheduleService(env.contents, env.ledger, NewOwnerAuthorizer(env.contents), env.clock)

	at := time.Date(2026, 10, 16, 1, 45, 0, 0, time.FixedZone("CST", 8*3600))
	row, err := svc.Schedule(ctx, "author", scheduling.Intent{ContentID: "c1", PublishAt: at})
	require.NoError(t, err)
	assert.NotEmpty(t, row.ID)
	assert.Equal(t, model.LedgerPending, row.Status)
	assert.Equal(t, "author", row.RequestedBy)

	stored := env.ledgerRow(t, row.ID)
	assert.True(t, stored.ScheduledFor.Equal(at))
	assert.Equal(t, time.UTC, stored.ScheduledFor.Location())
	assert.Equal(t, model.PostScheduled, env.post(t, "c1").Status)

	history, err := svc.History(ctx, "author", "c1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, row.ID, history[0].ID)
}

func TestSchedule_RejectsNonOwner(t *testing.T) {
	env := newTriggerEnv(t)
	testutil.SeedPost(t, env.db, "c1", "author", model.PostDraft)
	svc := NewScheduleService(env.contents, env.ledger, NewOwnerAuthorizer(env.contents), env.clock)

	_, err := svc.Schedule(context.Background(), "intruder", scheduling.Intent{ContentID: "c1", PublishAt: testutil.Epoch.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, model.PostDraft, env.post(t, "c1").Status)

	_, err = svc.History(context.Background(), "intruder", "c1")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSchedule_UnknownContent(t *testing.T) {
	env := newTriggerEnv(t)
	svc := NewScheduleService(env.contents, env.ledger, NewOwnerAuthorizer(env.contents), env.clock)

	_, err := svc.Schedule(context.Background(), "author", scheduling.Intent{ContentID: "missing", PublishAt: testutil.Epoch.Add(time.Hour)})
	assert.ErrorIs(t, err, repository.ErrContentNotFound)
}

func TestSchedule_RejectsPastIntent(t *testing.T) {
	env := newTriggerEnv(t)
	testutil.SeedPost(t, env.db, "c1", "author", model.PostDraft)
	svc := NewScheduleService(env.contents, env.ledger, NewOwnerAuthorizer(env.contents), env.clock)

	_, err := svc.Schedule(context.Background(), "author", scheduling.Intent{ContentID: "c1", PublishAt: testutil.Epoch})
	assert.ErrorIs(t, err, ErrNotFuture)

	rows, err := env.ledger.ListByContent(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSchedule_OnlyOneActiveSchedule(t *testing.T) {
	env := newTriggerEnv(t)
	ctx := context.Background()
	testutil.SeedPost(t, env.db, "c1", "author", model.PostDraft)
	svc := NewScheduleService(env.contents, env.ledger, NewOwnerAuthorizer(env.contents), env.clock)

	_, err := svc.Schedule(ctx, "author", scheduling.Intent{ContentID: "c1", PublishAt: testutil.Epoch.Add(time.Hour)})
	require.NoError(t, err)

	_, err = svc.Schedule(ctx, "author", scheduling.Intent{ContentID: "c1", PublishAt: testutil.Epoch.Add(2 * time.Hour)})
	assert.ErrorIs(t, err, repository.ErrContentNotSchedulable)

	counts, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[model.LedgerPending])
}

func TestSchedule_FailedContentCanBeRescheduled(t *testing.T) {
	env := newTriggerEnv(t)
	ctx := context.Background()
	testutil.SeedPost(t, env.db, "c1", "author", model.PostFailed)
	svc := NewScheduleService(env.contents, env.ledger, NewOwnerAuthorizer(env.contents), env.clock)

	_, err := svc.Schedule(ctx, "author", scheduling.Intent{ContentID: "c1", PublishAt: testutil.Epoch.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, model.PostScheduled, env.post(t, "c1").Status)
}

func TestSchedule_LedgerFailureRevertsContent(t *testing.T) {
	env := newTriggerEnv(t)
	testutil.SeedPost(t, env.db, "c1", "author", model.PostDraft)
	boom := errors.New("disk full")
	svc := NewScheduleService(env.contents, brokenLedger{LedgerRepository: env.ledger, err: boom},
		NewOwnerAuthorizer(env.contents), env.clock)

	_, err := svc.Schedule(context.Background(), "author", scheduling.Intent{ContentID: "c1", PublishAt: testutil.Epoch.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, model.PostDraft, env.post(t, "c1").Status)
}

func TestSchedule_SubmitterThroughRequest(t *testing.T) {
	env := newTriggerEnv(t)
	testutil.SeedPost(t, env.db, "c1", "author", model.PostDraft)
	svc := NewScheduleService(env.contents, env.ledger, NewOwnerAuthorizer(env.contents), env.clock)

	var created model.ScheduledPost
	req := scheduling.NewRequest(env.clock, time.UTC, svc.Submitter("intruder", &created))
	_, err := req.Confirm(context.Background(), "c1", req.Prefill(scheduling.QuickOptions[0]), time.Time{})
	assert.ErrorIs(t, err, scheduling.ErrSubmitFailed)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, created.ID)
}
