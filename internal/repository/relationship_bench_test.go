package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/testutil"
)

func BenchmarkFollowWrite_And_FanRedundancy(b *testing.B) {
	db := testutil.NewDB(b)
	followRepo := NewFollowRepository(db)
	fanRepo := NewFanRepository(db)
	ctx := context.Background()

	users := make([]model.User, 1000)
	for i := range users {
		id := fmt.Sprintf("u%04d", i)
		users[i] = model.User{ID: id, Username: id, Email: id + "@example.com"}
	}
	if err := db.CreateInBatches(&users, 200).Error; err != nil {
		b.Fatalf("seed users: %v", err)
	}

	rnd := rand.New(rand.NewSource(1))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		from := users[rnd.Intn(len(users))].ID
		to := users[rnd.Intn(len(users))].ID
		if from == to {
			continue
		}
		_ = followRepo.Create(ctx, from, to)
		_ = fanRepo.Create(ctx, to, from)
	}
}

// BenchmarkListDue 到期扫描依赖 (status, scheduled_for) 索引
func BenchmarkListDue(b *testing.B) {
	db := testutil.NewDB(b)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	const N = 5000
	rows := make([]model.ScheduledPost, N)
	for i := range rows {
		rows[i] = model.ScheduledPost{
			ID:           fmt.Sprintf("s%05d", i),
			ContentID:    fmt.Sprintf("c%05d", i),
			ScheduledFor: testutil.Epoch.Add(time.Duration(i-N/2) * time.Minute),
			Status:       model.LedgerPending,
		}
	}
	if err := db.CreateInBatches(&rows, 500).Error; err != nil {
		b.Fatalf("seed ledger: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := repo.ListDue(ctx, testutil.Epoch, 500); err != nil {
			b.Fatal(err)
		}
	}
}
