package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/testutil"
)

func TestLedger_ListDue_FiltersAndOrders(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()
	now := testutil.Epoch

	testutil.SeedPending(t, db, "s-late", "c1", now.Add(-time.Minute))
	testutil.SeedPending(t, db, "s-early", "c2", now.Add(-time.Hour))
	testutil.SeedPending(t, db, "s-exact", "c3", now)
	testutil.SeedPending(t, db, "s-future", "c4", now.Add(time.Second))
	done := testutil.SeedPending(t, db, "s-done", "c5", now.Add(-2*time.Hour))
	require.NoError(t, repo.MarkPublished(ctx, done.ID, now))

	due, err := repo.ListDue(ctx, now, 0)
	require.NoError(t, err)

	ids := make([]string, len(due))
	for i, d := range due {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"s-early", "s-late", "s-exact"}, ids)

	limited, err := repo.ListDue(ctx, now, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestLedger_TransitionsAreConditional(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()
	at := testutil.Epoch.Add(time.Hour)

	row := testutil.SeedPending(t, db, "s1", "c1", testutil.Epoch)

	require.NoError(t, repo.MarkPublished(ctx, row.ID, at))
	assert.ErrorIs(t, repo.MarkPublished(ctx, row.ID, at), ErrLedgerNotPending)
	assert.ErrorIs(t, repo.MarkFailed(ctx, row.ID, "late", at), ErrLedgerNotPending)

	got, err := repo.Get(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LedgerPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(at))
	assert.Empty(t, got.Error)
}

func TestLedger_MarkFailedRecordsReason(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	row := testutil.SeedPending(t, db, "s1", "c1", testutil.Epoch)
	require.NoError(t, repo.MarkFailed(ctx, row.ID, "content not found", testutil.Epoch))

	got, err := repo.Get(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LedgerFailed, got.Status)
	assert.Equal(t, "content not found", got.Error)
	assert.Nil(t, got.PublishedAt)
	assert.True(t, got.Status.Terminal())
}

func TestLedger_ConcurrentMarkPublished_OneWinner(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()
	row := testutil.SeedPending(t, db, "s1", "c1", testutil.Epoch)

	const racers = 8
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.MarkPublished(ctx, row.ID, testutil.Epoch)
		}()
	}
	wg.Wait()
	close(errs)

	wins, noops := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, ErrLedgerNotPending):
			noops++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, noops)
}

func TestLedger_GetMissing(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := NewLedgerRepository(db).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestLedger_CountByStatusAndHistory(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	a := testutil.SeedPending(t, db, "s1", "c1", testutil.Epoch)
	testutil.SeedPending(t, db, "s2", "c2", testutil.Epoch)
	require.NoError(t, repo.MarkFailed(ctx, a.ID, "boom", testutil.Epoch))
	require.NoError(t, repo.CreatePending(ctx, &model.ScheduledPost{ContentID: "c1", ScheduledFor: testutil.Epoch.Add(time.Hour)}))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.LedgerPending])
	assert.Equal(t, int64(1), counts[model.LedgerFailed])
	assert.Equal(t, int64(0), counts[model.LedgerPublished])

	history, err := repo.ListByContent(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	pending, err := repo.ListPending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
