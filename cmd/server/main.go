package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/d60-Lab/freed/config"
	"github.com/d60-Lab/freed/internal/api"
	"github.com/d60-Lab/freed/internal/api/handler"
	"github.com/d60-Lab/freed/internal/feed"
	"github.com/d60-Lab/freed/internal/invoker"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/internal/service"
	"github.com/d60-Lab/freed/pkg/clock"
	"github.com/d60-Lab/freed/pkg/database"
	"github.com/d60-Lab/freed/pkg/logger"
	"github.com/d60-Lab/freed/pkg/sentryx"
	"github.com/d60-Lab/freed/pkg/tracing"
)

// @title Freed API
// @version 1.0
// @description 内容定时发布与时间线服务
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flushSentry, err := sentryx.Init(cfg.Sentry)
	if err != nil {
		return err
	}
	defer flushSentry()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}

	// Redis 只用于时间线快照缓存，不可用时降级为直读数据库
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = database.InitRedis(ctx, cfg)
		if err != nil {
			logger.Warn("redis unavailable, feed cache disabled", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	loc, err := cfg.Schedule.Location()
	if err != nil {
		return err
	}
	clk := clock.Real()

	contents := repository.NewContentRepository(db)
	ledger := repository.NewLedgerRepository(db)
	followRepo := repository.NewFollowRepository(db)
	fanRepo := repository.NewFanRepository(db)
	authz := service.NewOwnerAuthorizer(contents)

	replicator := service.NewFanReplicator(fanRepo, 10000)
	stopReplicator := replicator.Start(4)
	fanout := service.NewFanoutWorker(db, fanRepo, 2, 1000, 64, time.Second)
	stopFanout := fanout.Start()

	trigger := service.NewPublicationTrigger(contents, ledger, service.TriggerOptions{
		BatchSize: cfg.Trigger.BatchSize,
		Clock:     clk,
		Reporter:  sentryx.NewReporter(),
		Logger:    logger.L(),
	})

	h := handler.New(handler.Deps{
		Relations:  service.NewRelationshipService(followRepo, fanRepo, replicator),
		Contents:   service.NewContentService(contents, authz, clk),
		Schedules:  service.NewScheduleService(contents, ledger, authz, clk),
		Trigger:    trigger,
		Reconciler: service.NewReconciler(contents, ledger, clk, cfg.Trigger.BatchSize),
		Feed:       feed.NewService(db, contents, rdb, cfg.Redis.FeedTTL),
		Clock:      clk,
		Location:   loc,
	})
	router, err := api.NewRouter(cfg, h)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var inv *invoker.Invoker
	if cfg.Trigger.Embedded {
		inv, err = invoker.New(cfg.Trigger.Cron, invoker.LocalTarget{Trigger: trigger}, logger.L())
		if err != nil {
			return err
		}
		inv.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var errs []error
		if inv != nil {
			errs = append(errs, inv.Stop(shutdownCtx))
		}
		errs = append(errs,
			srv.Shutdown(shutdownCtx),
			stopFanout(shutdownCtx),
			stopReplicator(shutdownCtx),
			shutdownTracing(shutdownCtx),
		)
		return errors.Join(errs...)
	})
	return g.Wait()
}
