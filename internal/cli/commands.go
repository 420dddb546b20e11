package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/d60-Lab/freed/internal/api/middleware"
	"github.com/d60-Lab/freed/internal/invoker"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/internal/service"
	"github.com/d60-Lab/freed/pkg/clock"
	"github.com/d60-Lab/freed/pkg/database"
	"github.com/d60-Lab/freed/pkg/logger"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)
			if err := database.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}

func NewTriggerCommand(opts *RootOptions) *cobra.Command {
	var reconcile bool
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Run the publication trigger once and print the run summary",
		Long: `Run the publication trigger once in-process and print the run summary.

Exit status is non-zero on a setup error. Row failures are reported in
the summary and do not change the exit status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, trig, flush, err := opts.openTrigger()
			if err != nil {
				writeTriggerError(cmd.ErrOrStderr(), err)
				return err
			}
			defer database.Close(db)
			defer flush()

			summary, err := trig.Run(cmd.Context())
			if err != nil {
				writeTriggerError(cmd.ErrOrStderr(), err)
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if reconcile {
				report, err := service.NewReconciler(repository.NewContentRepository(db), repository.NewLedgerRepository(db), clock.Real(), 0).Sweep(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reconcile, "reconcile", false, "also repair pending rows whose content is already published")
	return cmd
}

func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Mark pending ledger rows published when their content already is",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)
			r := service.NewReconciler(repository.NewContentRepository(db), repository.NewLedgerRepository(db), clock.Real(), limit)
			report, err := r.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max pending rows to check (0 = all)")
	return cmd
}

func NewCronCommand(opts *RootOptions) *cobra.Command {
	var (
		spec    string
		remote  bool
		runOnce bool
	)
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Invoke the publication trigger periodically until interrupted",
		Long: `Invoke the publication trigger on a cron schedule until SIGINT/SIGTERM.

By default the trigger runs in-process against the configured database.
With --http the configured trigger endpoint is called instead.

Example:
  freedctl cron --schedule "@every 30s"
  freedctl cron --http`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.Config
			if spec == "" {
				spec = cfg.Trigger.Cron
			}

			var target invoker.Target
			if remote {
				target = invoker.HTTPTarget{Endpoint: cfg.Trigger.Endpoint, ServiceKey: cfg.Trigger.ServiceKey, Timeout: cfg.Trigger.Timeout}
			} else {
				db, trig, flush, err := opts.openTrigger()
				if err != nil {
					writeTriggerError(cmd.ErrOrStderr(), err)
					return err
				}
				defer database.Close(db)
				defer flush()
				target = invoker.LocalTarget{Trigger: trig}
			}

			inv, err := invoker.New(spec, target, logger.L())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if runOnce {
				if _, err := inv.RunOnce(ctx); err != nil {
					logger.L().Sugar().Errorw("initial invocation failed", "error", err)
				}
			}
			inv.Start()
			<-ctx.Done()

			shutdown, cancel := contextWithTimeout(cfg.Trigger.Timeout)
			defer cancel()
			return inv.Stop(shutdown)
		},
	}
	cmd.Flags().StringVar(&spec, "schedule", "", "cron spec (default trigger.cron)")
	cmd.Flags().BoolVar(&remote, "http", false, "call trigger.endpoint instead of running in-process")
	cmd.Flags().BoolVar(&runOnce, "now", false, "invoke once immediately before the first tick")
	return cmd
}

func NewHashKeyCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <service-key>",
		Short: "Print the bcrypt hash to put in trigger.service_key_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := middleware.HashKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		username string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a development access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jc := opts.Config.JWT
			if jc.Secret == "" {
				return errors.New("jwt.secret is not configured")
			}
			if ttl > 0 {
				jc.TTL = ttl
			}
			tok, err := middleware.GenerateToken(jc, args[0], username, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default jwt.ttl)")
	return cmd
}

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), d)
}
