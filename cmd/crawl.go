package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/wikicrawler/internal/crawl"
)

const shutdownTimeout = 10 * time.Second

// newCrawlCmd creates the 'crawl' subcommand: every configured source is fed
// through the worker pool until the target is reached, then stale documents are refreshed.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the configured sources until the target document count is reached",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, runCrawl)
		},
	}
}

func runCrawl(ctx context.Context, rt *runtime) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := rt.logger

	g, gctx := errgroup.WithContext(ctx)
	var srv *http.Server
	if rt.cfg.Server.Enabled {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", rt.cfg.Server.Port),
			Handler:           rt.app.Server().Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("ops server started", zap.Int("port", rt.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
	}

	var sum crawl.Summary
	g.Go(func() error {
		defer shutdownServer(srv, logger)
		var err error
		sum, err = rt.app.Runner().Run(gctx)
		if errors.Is(err, context.Canceled) {
			logger.Warn("crawl interrupted")
			return nil
		}
		return err
	})
	err := g.Wait()

	logger.Info("crawl finished",
		zap.Int64("processed", sum.Stats.Processed),
		zap.Int64("new", sum.Stats.New),
		zap.Int64("updated", sum.Stats.Updated),
		zap.Int64("skipped", sum.Stats.Skipped),
		zap.Int64("errors", sum.Stats.Errors),
		zap.Int("reindexed", sum.Reindexed),
		zap.String("progress", sum.Progress.String()),
	)
	return err
}

func shutdownServer(srv *http.Server, logger *zap.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("ops server shutdown error", zap.Error(err))
	}
}
