// Package crawl runs the configured sources in order until the target document count
// is reached, then optionally refreshes stale documents.
package crawl

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
	"github.com/JakeFAU/wikicrawler/internal/metrics"
)

// maxIdleChunks ends a random source after this many consecutive chunks that
// produced no processed document.
const maxIdleChunks = 3

// SourceFactory builds the TitleSource for a configured source.
type SourceFactory interface {
	Source(spec crawler.SourceSpec) (crawler.TitleSource, error)
}

// BatchRunner processes one batch of titles; *dispatcher.Dispatcher satisfies it.
type BatchRunner interface {
	Run(ctx context.Context, titles []crawler.Title, source string) crawler.StatsSnapshot
}

// Reindexer refreshes stale documents; *reindex.Scheduler satisfies it.
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// Config carries the run limits.
type Config struct {
	Target            int64
	CategoryLimit     int
	RandomChunkSize   int
	DefaultBatchSize  int
	ReindexAfterCrawl bool
}

// Summary is the final report of a run.
type Summary struct {
	Stats     crawler.StatsSnapshot `json:"stats"`
	Progress  crawler.Progress      `json:"progress"`
	Reindexed int                   `json:"reindexed"`
}

// Runner drives sources through the worker pool.
type Runner struct {
	sources   []crawler.SourceSpec
	factory   SourceFactory
	batches   BatchRunner
	store     crawler.DocumentStore
	reindexer Reindexer
	cfg       Config
	logger    *zap.Logger
}

// NewRunner wires a Runner. reindexer may be nil.
func NewRunner(
	sources []crawler.SourceSpec,
	factory SourceFactory,
	batches BatchRunner,
	store crawler.DocumentStore,
	reindexer Reindexer,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CategoryLimit <= 0 {
		cfg.CategoryLimit = 5000
	}
	if cfg.RandomChunkSize <= 0 {
		cfg.RandomChunkSize = 100
	}
	if cfg.DefaultBatchSize <= 0 {
		cfg.DefaultBatchSize = 1000
	}
	return &Runner{
		sources:   sources,
		factory:   factory,
		batches:   batches,
		store:     store,
		reindexer: reindexer,
		cfg:       cfg,
		logger:    logger.Named("crawl"),
	}
}

// Run crawls every source in order, stopping early once the target is reached.
// On cancellation it returns the summary so far together with the context error.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	r.logger.Info("crawl started", zap.Int64("target", r.cfg.Target), zap.Int("sources", len(r.sources)))

	for _, spec := range r.sources {
		if ctx.Err() != nil {
			break
		}
		if r.targetReached(ctx) {
			r.logger.Info("target reached, skipping remaining sources", zap.String("next", spec.Name))
			break
		}
		src, err := r.factory.Source(spec)
		if err != nil {
			return r.finish(ctx, sum), fmt.Errorf("source %q: %w", spec.Name, err)
		}
		var snap crawler.StatsSnapshot
		switch spec.Type {
		case crawler.SourceRandom:
			snap, err = r.crawlRandom(ctx, spec, src)
		default:
			snap, err = r.crawlCategory(ctx, spec, src)
		}
		sum.Stats = sum.Stats.Add(snap)
		if err != nil {
			break
		}
	}

	if ctx.Err() == nil && r.cfg.ReindexAfterCrawl && r.reindexer != nil {
		n, err := r.reindexer.Reindex(ctx)
		sum.Reindexed = n
		if err != nil && ctx.Err() == nil {
			r.logger.Error("reindex failed", zap.Error(err))
		}
	}
	return r.finish(ctx, sum), ctx.Err()
}

func (r *Runner) crawlCategory(ctx context.Context, spec crawler.SourceSpec, src crawler.TitleSource) (crawler.StatsSnapshot, error) {
	logger := r.logger.With(zap.String("source", spec.Name), zap.String("category", spec.Category))
	titles, err := src.Titles(ctx, r.cfg.CategoryLimit)
	if err != nil {
		return crawler.StatsSnapshot{}, err
	}
	logger.Info("category listed", zap.Int("titles", len(titles)))
	return r.batches.Run(ctx, titles, spec.Name), nil
}

// crawlRandom samples chunks until batch_size documents were processed, the target is
// reached, the upstream returns an empty sample or several chunks in a row yield nothing.
func (r *Runner) crawlRandom(ctx context.Context, spec crawler.SourceSpec, src crawler.TitleSource) (crawler.StatsSnapshot, error) {
	logger := r.logger.With(zap.String("source", spec.Name))
	want := spec.BatchSize
	if want <= 0 {
		want = r.cfg.DefaultBatchSize
	}
	var (
		total crawler.StatsSnapshot
		idle  int
	)
	for total.Processed < int64(want) {
		if r.targetReached(ctx) {
			logger.Info("target reached")
			break
		}
		chunk := min(r.cfg.RandomChunkSize, want-int(total.Processed))
		titles, err := src.Titles(ctx, chunk)
		if err != nil {
			return total, err
		}
		if len(titles) == 0 {
			logger.Warn("random sample returned no titles")
			break
		}
		snap := r.batches.Run(ctx, titles, spec.Name)
		total = total.Add(snap)
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		if snap.Processed == 0 {
			idle++
			if idle >= maxIdleChunks {
				logger.Warn("random source made no progress, giving up", zap.Int("chunks", idle))
				break
			}
			continue
		}
		idle = 0
	}
	logger.Info("random source finished", zap.Int64("processed", total.Processed), zap.Int("wanted", want))
	return total, nil
}

func (r *Runner) targetReached(ctx context.Context) bool {
	if r.cfg.Target <= 0 {
		return false
	}
	n, err := r.store.Count(ctx)
	if err != nil {
		r.logger.Warn("store count failed", zap.Error(err))
		return false
	}
	return crawler.NewProgress(n, r.cfg.Target).Reached()
}

// finish logs the final report. The count uses a fresh context so an interrupted run
// still reports where the store ended up.
func (r *Runner) finish(ctx context.Context, sum Summary) Summary {
	countCtx := context.WithoutCancel(ctx)
	total, err := r.store.Count(countCtx)
	if err != nil {
		r.logger.Warn("final count failed", zap.Error(err))
	} else {
		metrics.SetStoreDocuments(total)
	}
	sum.Progress = crawler.NewProgress(total, r.cfg.Target)
	r.logger.Info("crawl finished",
		zap.Int64("processed", sum.Stats.Processed),
		zap.Int64("new", sum.Stats.New),
		zap.Int64("updated", sum.Stats.Updated),
		zap.Int64("skipped", sum.Stats.Skipped),
		zap.Int64("errors", sum.Stats.Errors),
		zap.Int("reindexed", sum.Reindexed),
		zap.String("progress", sum.Progress.String()),
	)
	return sum
}
