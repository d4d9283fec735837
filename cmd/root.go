// Package cmd defines and implements the CLI commands for the wikicrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikicrawler/internal/app"
	"github.com/JakeFAU/wikicrawler/internal/config"
	"github.com/JakeFAU/wikicrawler/internal/logging"
	"github.com/JakeFAU/wikicrawler/internal/metrics"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

type runtime struct {
	cfg    config.Config
	app    *app.App
	logger *zap.Logger
}

// newApp is the application factory. Tests swap it to inject options.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "wikicrawler",
		Short: "Builds and maintains a corpus of Wikipedia articles.",
		Long: `wikicrawler collects article titles from configured categories and random
samples, fetches each article through the MediaWiki API and upserts it into the
document store. It stops once the store holds the target number of documents
and periodically refreshes documents that have gone stale.`,
		SilenceUsage: true,

		// Runs before every subcommand: config, logger, metrics and services.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			metrics.Init()

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, &runtime{cfg: cfg, app: a, logger: a.Logger()}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (env: WIKICRAWLER_*)")

	cmd.AddCommand(
		newCrawlCmd(),
		newReindexCmd(),
		newStatusCmd(),
		newExportCmd(),
		newRestoreCmd(),
	)
	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(appKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("application services not initialized")
	}
	return rt, nil
}

// withRuntime runs fn with the services built by the root command and releases
// them afterwards, whether or not fn succeeded.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) (err error) {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.app.Close(); closeErr != nil {
			rt.logger.Warn("error closing services", zap.Error(closeErr))
			err = errors.Join(err, closeErr)
		}
		_ = rt.logger.Sync()
	}()
	return fn(cmd.Context(), rt)
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
