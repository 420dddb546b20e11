package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/internal/scheduling"
	"github.com/d60-Lab/freed/internal/testutil"
	"github.com/d60-Lab/freed/pkg/clock"
)

type recordingReporter struct {
	mu              sync.Mutex
	inconsistencies []string
	fatals          []string
}

func (r *recordingReporter) Inconsistency(contentID, _ string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inconsistencies = append(r.inconsistencies, contentID)
}

func (r *recordingReporter) Fatal(code string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatals = append(r.fatals, code)
}

// faultyLedger 在真实台账上注入故障
type faultyLedger struct {
	repository.LedgerRepository

	mu              sync.Mutex
	listDueErr      error
	failPublishOnce map[string]error
	staleDue        []*model.ScheduledPost
}

func (f *faultyLedger) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledPost, error) {
	if f.listDueErr != nil {
		return nil, f.listDueErr
	}
	if f.staleDue != nil {
		return f.staleDue, nil
	}
	return f.LedgerRepository.ListDue(ctx, now, limit)
}

func (f *faultyLedger) MarkPublished(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	err, ok := f.failPublishOnce[id]
	delete(f.failPublishOnce, id)
	f.mu.Unlock()
	if ok {
		return err
	}
	return f.LedgerRepository.MarkPublished(ctx, id, at)
}

type triggerEnv struct {
	db       *gorm.DB
	contents repository.ContentRepository
	ledger   repository.LedgerRepository
	clock    *clock.Manual
	reporter *recordingReporter
}

func newTriggerEnv(t *testing.T) *triggerEnv {
	db := testutil.NewDB(t)
	return &triggerEnv{
		db:       db,
		contents: repository.NewContentRepository(db),
		ledger:   repository.NewLedgerRepository(db),
		clock:    clock.NewManual(testutil.Epoch),
		reporter: &recordingReporter{},
	}
}

func (e *triggerEnv) trigger(ledger repository.LedgerRepository) *PublicationTrigger {
	return NewPublicationTrigger(e.contents, ledger, TriggerOptions{Clock: e.clock, Reporter: e.reporter})
}

// schedule 走完整的 scheduled 路径：内容置为 scheduled 并写 pending 行
func (e *triggerEnv) schedule(t *testing.T, contentID string, at time.Time) *model.ScheduledPost {
	t.Helper()
	testutil.SeedPost(t, e.db, contentID, "author", model.PostDraft)
	require.NoError(t, e.contents.MarkScheduled(context.Background(), contentID, e.clock.Now()))
	return testutil.SeedPending(t, e.db, "s-"+contentID, contentID, at)
}

func (e *triggerEnv) ledgerRow(t *testing.T, id string) *model.ScheduledPost {
	t.Helper()
	row, err := e.ledger.Get(context.Background(), id)
	require.NoError(t, err)
	return row
}

func (e *triggerEnv) post(t *testing.T, id string) *model.Post {
	t.Helper()
	p, err := e.contents.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func TestTrigger_ScheduleThenPublishWhenDue(t *testing.T) {
	env := newTriggerEnv(t)
	ctx := context.Background()
	testutil.SeedPost(t, env.db, "c1", "author", model.PostDraft)

	svc := NewScheduleService(env.contents, env.ledger, NewOwnerAuthorizer(env.contents), env.clock)
	var created model.ScheduledPost
	req := scheduling.NewRequest(env.clock, time.UTC, svc.Submitter("author", &created))
	_, err := req.Confirm(ctx, "c1", scheduling.SelectionAt(testutil.Epoch.Add(2*time.Hour), time.UTC), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, model.PostScheduled, env.post(t, "c1").Status)

	trig := env.trigger(env.ledger)

	env.clock.Advance(time.Hour)
	sum, err := trig.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.TotalScheduled)
	assert.Equal(t, model.PostScheduled, env.post(t, "c1").Status)

	publishAt := env.clock.Advance(time.Hour)
	sum, err = trig.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalScheduled)
	assert.Equal(t, 1, sum.Published)
	assert.Equal(t, []PublishedPost{{ContentID: "c1", ScheduledPostID: created.ID}}, sum.PublishedPosts)
	assert.False(t, sum.Degraded())

	p := env.post(t, "c1")
	assert.Equal(t, model.PostPublished, p.Status)
	require.NotNil(t, p.PublishedAt)
	assert.True(t, p.PublishedAt.Equal(publishAt))

	row := env.ledgerRow(t, created.ID)
	assert.Equal(t, model.LedgerPublished, row.Status)
	require.NotNil(t, row.PublishedAt)
	assert.True(t, row.PublishedAt.Equal(publishAt))

	var outbox int64
	require.NoError(t, env.db.Model(&model.Outbox{}).Where("post_id = ?", "c1").Count(&outbox).Error)
	assert.EqualValues(t, 1, outbox)
}

func TestTrigger_DeletedContentFailsRow(t *testing.T) {
	env := newTriggerEnv(t)
	ctx := context.Background()
	row := env.schedule(t, "c1", testutil.Epoch.Add(-time.Minute))
	require.NoError(t, env.contents.Delete(ctx, "c1"))

	sum, err := env.trigger(env.ledger).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalScheduled)
	assert.Equal(t, 0, sum.Published)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, "c1", sum.Errors[0].ContentID)
	assert.NotEmpty(t, sum.Errors[0].Error)

	got := env.ledgerRow(t, row.ID)
	assert.Equal(t, model.LedgerFailed, got.Status)
	assert.NotEmpty(t, got.Error)
}

func TestTrigger_RowFailureDoesNotStopBatch(t *testing.T) {
	env := newTriggerEnv(t)
	ctx := context.Background()

	const n, broken = 5, 2
	for i := 0; i < n; i++ {
		env.schedule(t, fmt.Sprintf("c%d", i), testutil.Epoch.Add(-time.Duration(n-i)*time.Minute))
	}
	// 第 k 行内容被挪回草稿，发布条件不成立
	require.NoError(t, env.db.Model(&model.Post{}).Where("id = ?", fmt.Sprintf("c%d", broken)).
		Update("status", model.PostDraft).Error)

	sum, err := env.trigger(env.ledger).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, sum.TotalScheduled)
	assert.Equal(t, n-1, sum.Published)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, fmt.Sprintf("c%d", broken), sum.Errors[0].ContentID)
	assert.Contains(t, sum.Errors[0].Error, "not in a publishable state")

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("c%d", i)
		row := env.ledgerRow(t, "s-"+id)
		if i == broken {
			assert.Equal(t, model.LedgerFailed, row.Status)
			assert.Equal(t, model.PostDraft, env.post(t, id).Status)
			continue
		}
		assert.Equal(t, model.LedgerPublished, row.Status, id)
		assert.Equal(t, model.PostPublished, env.post(t, id).Status, id)
	}
}

func TestTrigger_SecondRunIsNoop(t *testing.T) {
	env := newTriggerEnv(t)
	ctx := context.Background()
	env.schedule(t, "c1", testutil.Epoch)
	trig := env.trigger(env.ledger)

	first, err := trig.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Published)

	env.clock.Advance(time.Minute)
	second, err := trig.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.TotalScheduled)
	assert.Equal(t, 0, second.Published)
	assert.Equal(t, 0, second.Failed)
	assert.Empty(t, second.PublishedPosts)
}

func TestTrigger_LedgerFailureIsInconsistencyAndHealsNextRun(t *testing.T) {
	env := newTriggerEnv(t)
	ctx := context.Background()
	row := env.schedule(t, "c1", testutil.Epoch.Add(-time.Minute))

	ledger := &faultyLedger{
		LedgerRepository: env.ledger,
		failPublishOnce:  map[string]error{row.ID: errors.New("connection reset")},
	}
	trig := env.trigger(ledger)

	sum, err := trig.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Published)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 1, sum.Inconsistent)
	require.Len(t, sum.Inconsistencies, 1)
	assert.Contains(t, sum.Inconsistencies[0].Error, "connection reset")
	assert.True(t, sum.Degraded())
	assert.Equal(t, []string{"c1"}, env.reporter.inconsistencies)

	// 内容已可见，台账仍 pending
	published := env.post(t, "c1")
	assert.Equal(t, model.PostPublished, published.Status)
	assert.Equal(t, model.LedgerPending, env.ledgerRow(t, row.ID).Status)

	env.clock.Advance(5 * time.Minute)
	sum, err = trig.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Published)
	assert.Equal(t, 0, sum.Inconsistent)

	healed := env.ledgerRow(t, row.ID)
	assert.Equal(t, model.LedgerPublished, healed.Status)
	require.NotNil(t, healed.PublishedAt)
	assert.True(t, healed.PublishedAt.Equal(*published.PublishedAt))

	var outbox int64
	require.NoError(t, env.db.Model(&model.Outbox{}).Where("post_id = ?", "c1").Count(&outbox).Error)
	assert.EqualValues(t, 1, outbox)
}

func TestTrigger_StaleInvocationSkips(t *testing.T) {
	env := newTriggerEnv(t)
	ctx := context.Background()
	env.schedule(t, "c1", testutil.Epoch)
	env.schedule(t, "c2", testutil.Epoch)

	// 第二个调用在第一个完成前读到了到期列表
	snapshot, err := env.ledger.ListDue(ctx, env.clock.Now(), 0)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	winner, err := env.trigger(env.ledger).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, winner.Published)

	loser, err := env.trigger(&faultyLedger{LedgerRepository: env.ledger, staleDue: snapshot}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loser.TotalScheduled)
	assert.Equal(t, 0, loser.Published)
	assert.Equal(t, 0, loser.Failed)
	assert.Equal(t, 2, loser.Skipped)
}

func TestTrigger_ConcurrentRunsPublishOnce(t *testing.T) {
	env := newTriggerEnv(t)
	ctx := context.Background()
	const n = 8
	for i := 0; i < n; i++ {
		env.schedule(t, fmt.Sprintf("c%d", i), testutil.Epoch.Add(-time.Minute))
	}

	trig := env.trigger(env.ledger)
	sums := make([]*RunSummary, 3)
	var g errgroup.Group
	for i := range sums {
		i := i
		g.Go(func() error {
			s, err := trig.Run(ctx)
			sums[i] = s
			return err
		})
	}
	require.NoError(t, g.Wait())

	published := 0
	for _, s := range sums {
		published += s.Published
		assert.Equal(t, 0, s.Failed)
	}
	assert.Equal(t, n, published)

	var outbox int64
	require.NoError(t, env.db.Model(&model.Outbox{}).Count(&outbox).Error)
	assert.EqualValues(t, n, outbox)
}

func TestTrigger_SetupError(t *testing.T) {
	env := newTriggerEnv(t)
	trig := NewPublicationTrigger(nil, env.ledger, TriggerOptions{Clock: env.clock})

	sum, err := trig.Run(context.Background())
	assert.Nil(t, sum)
	var terr *TriggerError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, CodeSetupFailed, terr.Code)
}

func TestTrigger_LedgerUnavailable(t *testing.T) {
	env := newTriggerEnv(t)
	boom := errors.New("database is locked")
	trig := env.trigger(&faultyLedger{LedgerRepository: env.ledger, listDueErr: boom})

	sum, err := trig.Run(context.Background())
	assert.Nil(t, sum)
	var terr *TriggerError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, CodeLedgerUnavailable, terr.Code)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{CodeLedgerUnavailable}, env.reporter.fatals)
}

func TestTrigger_IgnoresCancellationOnceStarted(t *testing.T) {
	env := newTriggerEnv(t)
	env.schedule(t, "c1", testutil.Epoch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := env.trigger(env.ledger).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Published)
}
