package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReindexCmd() *cobra.Command {
	var watch time.Duration
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Re-fetches documents older than the reindex period",
		Long: `Refreshes every document whose crawl date is older than
logic.reindex_period_days. With --watch the pass repeats on the given interval
until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				return runReindex(ctx, rt, watch)
			})
		},
	}
	cmd.Flags().DurationVar(&watch, "watch", 0, "repeat the pass on this interval (e.g. 6h)")
	return cmd
}

func runReindex(ctx context.Context, rt *runtime, watch time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	scheduler := rt.app.Reindexer()
	if watch <= 0 {
		n, err := scheduler.Reindex(ctx)
		if errors.Is(err, context.Canceled) {
			rt.logger.Info("reindex interrupted", zap.Int("refreshed", n))
			return nil
		}
		rt.logger.Info("reindex finished", zap.Int("refreshed", n))
		return err
	}
	rt.logger.Info("reindex watch started", zap.Duration("interval", watch))
	if err := scheduler.Watch(ctx, watch); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	rt.logger.Info("reindex watch stopped")
	return nil
}
