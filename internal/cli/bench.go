package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/d60-Lab/freed/internal/feed"
	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/internal/service"
	"github.com/d60-Lab/freed/pkg/clock"
	"github.com/d60-Lab/freed/pkg/database"
)

// BenchOptions 压测参数
type BenchOptions struct {
	*RootOptions
	Fans    int
	Posts   int
	Batch   int
	Workers int
	Claim   int
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range vs {
		sum += d
	}
	return sum / time.Duration(len(vs))
}

func NewBenchCommand(root *RootOptions) *cobra.Command {
	opts := &BenchOptions{RootOptions: root}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure follow replication, trigger runs, fan-out landing and timeline reads",
		Long: `Seed one author with --fans followers and --posts due scheduled posts,
then measure:
  - follow -> fans replication lag
  - trigger run latency (batch of --batch rows per run)
  - outbox -> inbox landing latency
  - first timeline page read

Writes to the configured database. Use a scratch database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)
			if err := database.Migrate(db); err != nil {
				return err
			}
			return runBench(cmd.Context(), db, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.Fans, "fans", 2000, "followers of the author")
	cmd.Flags().IntVar(&opts.Posts, "posts", 200, "due scheduled posts")
	cmd.Flags().IntVar(&opts.Batch, "batch", 50, "trigger batch size")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "fan-out workers")
	cmd.Flags().IntVar(&opts.Claim, "claim", 64, "outbox events claimed per poll")
	return cmd
}

func runBench(ctx context.Context, db *gorm.DB, opts *BenchOptions, out io.Writer) error {
	followRepo := repository.NewFollowRepository(db)
	fanRepo := repository.NewFanRepository(db)
	contents := repository.NewContentRepository(db)
	ledger := repository.NewLedgerRepository(db)

	// 关注：异步冗余粉丝表
	replicator := service.NewFanReplicator(fanRepo, opts.Fans+1)
	stopReplicator := replicator.Start(opts.Workers)
	rel := service.NewRelationshipService(followRepo, fanRepo, replicator)

	author := "bench-" + uuid.New().String()[:8]
	firstFan := ""
	for i := 0; i < opts.Fans; i++ {
		id := uuid.New().String()
		if i == 0 {
			firstFan = id
		}
		if err := rel.Follow(ctx, id, author); err != nil {
			return err
		}
	}
	lag := make([]time.Duration, 0, opts.Fans)
	timeout := time.After(2 * time.Minute)
collect:
	for len(lag) < opts.Fans {
		select {
		case d := <-replicator.Metrics():
			lag = append(lag, d)
		case <-timeout:
			fmt.Fprintf(out, "timeout waiting for replication: got=%d want=%d\n", len(lag), opts.Fans)
			break collect
		}
	}
	if err := stopReplicator(ctx); err != nil {
		return err
	}

	// 到期的定时内容
	now := clock.Real().Now()
	for i := 0; i < opts.Posts; i++ {
		id := uuid.New().String()
		if err := contents.Create(ctx, &model.Post{
			ID: id, AuthorID: author, Title: fmt.Sprintf("bench %d", i),
			Payload: datatypes.JSON(`{}`), Status: model.PostScheduled,
		}); err != nil {
			return err
		}
		if err := ledger.CreatePending(ctx, &model.ScheduledPost{
			ContentID: id, ScheduledFor: now.Add(-time.Duration(opts.Posts-i) * time.Millisecond), RequestedBy: author,
		}); err != nil {
			return err
		}
	}

	worker := service.NewFanoutWorker(db, fanRepo, opts.Workers, 1000, opts.Claim, 20*time.Millisecond)
	stopWorker := worker.Start()
	defer stopWorker(ctx)

	trig := service.NewPublicationTrigger(contents, ledger, service.TriggerOptions{BatchSize: opts.Batch})
	var runs []time.Duration
	published := 0
	for published < opts.Posts {
		st := time.Now()
		sum, err := trig.Run(ctx)
		if err != nil {
			return err
		}
		runs = append(runs, time.Since(st))
		if sum.TotalScheduled == 0 {
			break
		}
		published += sum.Published
	}

	land := make([]time.Duration, 0, published)
	timeout = time.After(2 * time.Minute)
wait:
	for len(land) < published {
		select {
		case d := <-worker.Metrics():
			land = append(land, d)
		case <-timeout:
			fmt.Fprintf(out, "timeout waiting for fan-out: got=%d want=%d\n", len(land), published)
			break wait
		}
	}

	fmt.Fprintf(out, "FANS=%d POSTS=%d BATCH=%d WORKERS=%d CLAIM=%d\n", opts.Fans, opts.Posts, opts.Batch, opts.Workers, opts.Claim)
	fmt.Fprintf(out, "Fan replication lag: samples=%d avg=%v p95=%v p99=%v\n", len(lag), avg(lag), pct(lag, 0.95), pct(lag, 0.99))
	fmt.Fprintf(out, "Trigger run: runs=%d published=%d avg=%v p95=%v p99=%v\n", len(runs), published, avg(runs), pct(runs, 0.95), pct(runs, 0.99))
	fmt.Fprintf(out, "Fan-out landing (published->inbox): samples=%d avg=%v p95=%v p99=%v\n", len(land), avg(land), pct(land, 0.95), pct(land, 0.99))

	if firstFan != "" {
		st := time.Now()
		page, err := feed.NewService(db, contents, nil, 0).Timeline(ctx, firstFan, 0, 50)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Timeline read (first fan, limit=50): %v, items=%d\n", time.Since(st), len(page.Items))
	}
	return nil
}
