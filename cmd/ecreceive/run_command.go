package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"ecreceive/internal/daemon"
	"ecreceive/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the receiver daemon",
		Long: "Watch the spool directory for incoming datasets, verify and move them " +
			"to the destination directory, and publish them to the metadata catalog. " +
			"Runs until interrupted; a clean interrupt exits with status 0.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger, err := logging.NewFromConfig(cfg, ctx.logLevel())
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
				logging.RetentionTarget{
					Dir:     cfg.Paths.LogDir,
					Pattern: "*.log",
					Exclude: []string{filepath.Join(cfg.Paths.LogDir, "ecreceive.log")},
				},
			)

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return err
			}
			return d.Run(signalCtx)
		},
	}
}
