package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/testutil"
)

func TestContent_ScheduleAndPublish(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewContentRepository(db)
	ctx := context.Background()
	at := testutil.Epoch.Add(time.Hour)

	testutil.SeedPost(t, db, "p1", "author", model.PostDraft)

	require.NoError(t, repo.MarkScheduled(ctx, "p1", testutil.Epoch))
	assert.ErrorIs(t, repo.MarkScheduled(ctx, "p1", testutil.Epoch), ErrContentNotSchedulable)

	require.NoError(t, repo.Publish(ctx, "p1", at))
	assert.ErrorIs(t, repo.Publish(ctx, "p1", at), ErrContentAlreadyPublished)

	got, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.PostPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(at))
	assert.JSONEq(t, `{"body":"hello"}`, string(got.Payload))

	var events []model.Outbox
	require.NoError(t, db.Where("post_id = ?", "p1").Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxPending, events[0].Status)
	assert.Equal(t, "author", events[0].AuthorID)
}

func TestContent_PublishClassifiesFailures(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewContentRepository(db)
	ctx := context.Background()

	testutil.SeedPost(t, db, "draft", "a", model.PostDraft)

	assert.ErrorIs(t, repo.Publish(ctx, "missing", testutil.Epoch), ErrContentNotFound)
	assert.ErrorIs(t, repo.Publish(ctx, "draft", testutil.Epoch), ErrContentNotPublishable)

	var n int64
	require.NoError(t, db.Model(&model.Outbox{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestContent_MarkFailedAndReschedule(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewContentRepository(db)
	ctx := context.Background()

	testutil.SeedPost(t, db, "p1", "a", model.PostScheduled)
	require.NoError(t, repo.MarkFailed(ctx, "p1", testutil.Epoch))

	got, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.PostFailed, got.Status)

	// failed 内容可以重新定时
	require.NoError(t, repo.MarkScheduled(ctx, "p1", testutil.Epoch))
	require.NoError(t, repo.RevertScheduled(ctx, "p1", testutil.Epoch))
	got, err = repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.PostDraft, got.Status)
}

func TestContent_MarkScheduledMissing(t *testing.T) {
	db := testutil.NewDB(t)
	err := NewContentRepository(db).MarkScheduled(context.Background(), "nope", testutil.Epoch)
	assert.ErrorIs(t, err, ErrContentNotFound)
}

func TestContent_PublishNowAndList(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewContentRepository(db)
	ctx := context.Background()

	post := &model.Post{AuthorID: "a", Title: "now", Payload: datatypes.JSON(`{"x":1}`)}
	require.NoError(t, repo.PublishNow(ctx, post, testutil.Epoch))
	require.NotEmpty(t, post.ID)

	published, err := repo.ListPublishedByIDs(ctx, []string{post.ID, "other"})
	require.NoError(t, err)
	require.Len(t, published, 1)

	mine, err := repo.ListByAuthor(ctx, "a", 0, 10)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, repo.Delete(ctx, post.ID))
	assert.ErrorIs(t, repo.Delete(ctx, post.ID), ErrContentNotFound)
}
