// Package cli freedctl 运维命令
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/d60-Lab/freed/config"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/internal/service"
	"github.com/d60-Lab/freed/pkg/clock"
	"github.com/d60-Lab/freed/pkg/database"
	"github.com/d60-Lab/freed/pkg/logger"
	"github.com/d60-Lab/freed/pkg/sentryx"
)

// RootOptions 全局参数；Config 在 PersistentPreRunE 中加载
type RootOptions struct {
	ConfigPath string
	Config     *config.Config
}

// NewRootCommand freedctl 根命令
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "freedctl",
		Short:         "Operator tooling for scheduled publication",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := opts.ConfigPath
			var (
				cfg *config.Config
				err error
			)
			if path != "" {
				cfg, err = config.LoadFile(path)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.Log); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			opts.Config = cfg
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) { logger.Sync() },
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default $FREED_CONFIG or ./config/config.yaml)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTriggerCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewCronCommand(opts))
	cmd.AddCommand(NewHashKeyCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewBenchCommand(opts))

	return cmd
}

func (o *RootOptions) openDB() (*gorm.DB, error) {
	if err := o.Config.Validate(); err != nil {
		return nil, err
	}
	return database.InitDB(o.Config)
}

// newTrigger 按配置组装触发器，返回 sentry flush 函数
func (o *RootOptions) newTrigger(db *gorm.DB) (*service.PublicationTrigger, func(), error) {
	flush, err := sentryx.Init(o.Config.Sentry)
	if err != nil {
		return nil, nil, err
	}
	trig := service.NewPublicationTrigger(
		repository.NewContentRepository(db),
		repository.NewLedgerRepository(db),
		service.TriggerOptions{
			BatchSize: o.Config.Trigger.BatchSize,
			Clock:     clock.Real(),
			Reporter:  sentryx.NewReporter(),
			Logger:    logger.L(),
		},
	)
	return trig, flush, nil
}

// openTrigger 打开存储并组装触发器；任何一步失败都是 SETUP_FAILED，此时没有行被处理
func (o *RootOptions) openTrigger() (*gorm.DB, *service.PublicationTrigger, func(), error) {
	db, err := o.openDB()
	if err != nil {
		return nil, nil, nil, setupFailed("cannot reach content store and ledger", err)
	}
	trig, flush, err := o.newTrigger(db)
	if err != nil {
		_ = database.Close(db)
		return nil, nil, nil, setupFailed("cannot initialise error reporting", err)
	}
	return db, trig, flush, nil
}

func setupFailed(msg string, err error) *service.TriggerError {
	return &service.TriggerError{Code: service.CodeSetupFailed, Message: msg + ": " + err.Error(), Err: err}
}

// writeTriggerError 致命错误按 {error: {code, message}} 输出
func writeTriggerError(w io.Writer, err error) {
	var terr *service.TriggerError
	if errors.As(err, &terr) {
		_ = writeJSON(w, map[string]any{"error": terr})
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ExecuteContext 供 main 调用
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
