package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"remoteup/core"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var historyPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured upload jobs on their cron schedules until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			hm := core.NewHistoryManager(historyPath)
			if err := hm.Load(); err != nil {
				logger.WithError(err).Warn("failed to load history")
			}

			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tm := core.NewTransferManager(cfg, opts.newDialer(logger), hm, logger)
			runner := core.NewRunner(cfg, tm, logger)
			if err := runner.Start(ctx); err != nil {
				logger.WithError(err).Error("some jobs were not scheduled")
			}
			logger.Info("remoteup started")

			<-ctx.Done()

			logger.Info("shutting down")
			runner.Stop()
			return hm.Save()
		},
	}
	cmd.Flags().StringVar(&historyPath, "history", "history.json", "Path to history file")
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
