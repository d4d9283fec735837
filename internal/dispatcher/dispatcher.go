// Package dispatcher fans a batch of titles out to a bounded pool of workers and stops
// dispatching once the store reaches the target document count.
//
// The target check runs before each unit and is not serialized with the upserts of
// units already in flight. With W workers and target T, a batch that reaches the
// target ends with a store count C where T <= C < T+W: when the insert that reaches
// T lands, at most W-1 other units have passed their check and may still insert.
package dispatcher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
	"github.com/JakeFAU/wikicrawler/internal/metrics"
	"github.com/JakeFAU/wikicrawler/internal/queue/memory"
	"github.com/JakeFAU/wikicrawler/internal/worker"
)

// Config controls pool size, the stop condition and reporting cadence.
type Config struct {
	Workers int
	// Target is the store-wide document count that ends dispatch. Zero disables the check.
	Target int64
	// ReportEvery logs a progress report after this many completed units. Zero disables it.
	ReportEvery int
}

// Dispatcher fans out batches of titles to a pool of workers.
type Dispatcher struct {
	worker *worker.Worker
	store  crawler.DocumentStore
	// pacer spaces units in single-worker mode; pooled runs are throttled by the worker count.
	pacer  crawler.Pacer
	cfg    Config
	live   *crawler.Stats
	logger *zap.Logger
}

// New creates a Dispatcher. live accumulates counters across every batch and may be nil.
func New(
	w *worker.Worker,
	store crawler.DocumentStore,
	pacer crawler.Pacer,
	cfg Config,
	live *crawler.Stats,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Dispatcher{
		worker: w,
		store:  store,
		pacer:  pacer,
		cfg:    cfg,
		live:   live,
		logger: logger.Named("dispatcher"),
	}
}

// Run processes titles until the queue drains, the target is reached or ctx ends.
// Queued titles are dropped once the target is reached; units already running
// finish on ctx so their upserts are not torn.
func (d *Dispatcher) Run(ctx context.Context, titles []crawler.Title, source string) crawler.StatsSnapshot {
	batch := crawler.NewStats()
	logger := d.logger.With(zap.String("source", source))
	if len(titles) == 0 {
		return batch.Snapshot()
	}
	if d.reached(ctx) {
		logger.Info("target already reached, skipping batch", zap.Int64("target", d.cfg.Target))
		return batch.Snapshot()
	}

	q, err := memory.Fill(ctx, titles)
	if err != nil {
		logger.Warn("queueing titles interrupted", zap.Error(err))
		return batch.Snapshot()
	}

	dispatchCtx, stop := context.WithCancel(ctx)
	defer stop()

	workers := min(d.cfg.Workers, len(titles))
	logger.Info("batch started", zap.Int("titles", len(titles)), zap.Int("workers", workers))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				title, err := q.Dequeue(dispatchCtx)
				if err != nil {
					return
				}
				if d.reached(ctx) {
					logger.Info("target reached, cancelling queued work", zap.Int("queued", q.Len()))
					stop()
					return
				}
				if workers == 1 && d.pacer != nil {
					if err := d.pacer.Wait(dispatchCtx); err != nil {
						return
					}
				}
				if title.Source == "" {
					title.Source = source
				}

				metrics.IncActiveWorkers()
				res := d.worker.Process(ctx, title, batch)
				metrics.DecActiveWorkers()
				d.recordLive(res)

				mu.Lock()
				completed++
				n := completed
				mu.Unlock()
				if d.cfg.ReportEvery > 0 && n%d.cfg.ReportEvery == 0 {
					d.report(ctx, logger, batch.Snapshot())
				}
			}
		}()
	}
	wg.Wait()

	snap := batch.Snapshot()
	d.report(ctx, logger.With(zap.Bool("final", true)), snap)
	return snap
}

func (d *Dispatcher) recordLive(res worker.Result) {
	if d.live == nil {
		return
	}
	switch {
	case !res.Discarded:
		d.live.Record(res.Outcome)
	case res.Reason == worker.ReasonFetchFailed:
		d.live.AddError()
	}
}

// reached reports whether the store count has met the target. A failed count is
// logged and treated as not reached so one bad read does not end the batch.
func (d *Dispatcher) reached(ctx context.Context) bool {
	if d.cfg.Target <= 0 {
		return false
	}
	n, err := d.store.Count(ctx)
	if err != nil {
		d.logger.Warn("store count failed", zap.Error(err))
		return false
	}
	return crawler.NewProgress(n, d.cfg.Target).Reached()
}

func (d *Dispatcher) report(ctx context.Context, logger *zap.Logger, snap crawler.StatsSnapshot) {
	fields := []zap.Field{
		zap.Int64("processed", snap.Processed),
		zap.Int64("new", snap.New),
		zap.Int64("updated", snap.Updated),
		zap.Int64("skipped", snap.Skipped),
		zap.Int64("errors", snap.Errors),
	}
	total, err := d.store.Count(ctx)
	if err != nil {
		logger.Warn("progress count failed", append(fields, zap.Error(err))...)
		return
	}
	metrics.SetStoreDocuments(total)
	p := crawler.NewProgress(total, d.cfg.Target)
	fields = append(fields,
		zap.Int64("total", p.Total),
		zap.Int64("target", p.Target),
		zap.String("progress", p.String()),
	)
	logger.Info("crawl progress", fields...)
}
