// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikicrawler/internal/api"
	"github.com/JakeFAU/wikicrawler/internal/blob"
	gcsblob "github.com/JakeFAU/wikicrawler/internal/blob/gcs"
	localblob "github.com/JakeFAU/wikicrawler/internal/blob/local"
	"github.com/JakeFAU/wikicrawler/internal/clock/system"
	"github.com/JakeFAU/wikicrawler/internal/config"
	"github.com/JakeFAU/wikicrawler/internal/crawl"
	"github.com/JakeFAU/wikicrawler/internal/crawler"
	"github.com/JakeFAU/wikicrawler/internal/dispatcher"
	"github.com/JakeFAU/wikicrawler/internal/document"
	"github.com/JakeFAU/wikicrawler/internal/export"
	collyfetcher "github.com/JakeFAU/wikicrawler/internal/fetcher/colly"
	"github.com/JakeFAU/wikicrawler/internal/id/uuid"
	"github.com/JakeFAU/wikicrawler/internal/policy/politeness"
	pubsubpublisher "github.com/JakeFAU/wikicrawler/internal/publisher/pubsub"
	"github.com/JakeFAU/wikicrawler/internal/reindex"
	"github.com/JakeFAU/wikicrawler/internal/restore"
	"github.com/JakeFAU/wikicrawler/internal/seen"
	redisseen "github.com/JakeFAU/wikicrawler/internal/seen/redis"
	badgerstore "github.com/JakeFAU/wikicrawler/internal/storage/badger"
	memorystore "github.com/JakeFAU/wikicrawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/wikicrawler/internal/storage/postgres"
	"github.com/JakeFAU/wikicrawler/internal/wiki"
	"github.com/JakeFAU/wikicrawler/internal/worker"
)

const badgerGCInterval = 10 * time.Minute

// App holds the shared services for one command invocation: the document store,
// the optional change feed and seen filter, and the wiki client every pipeline
// stage fetches through.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	repo      crawler.DocumentRepository
	store     *document.Adapter
	pacer     *politeness.Pacer
	client    *wiki.Client
	seen      crawler.SeenTracker
	stats     *crawler.Stats
	clock     crawler.Clock
	ids       crawler.IDGenerator
	runID     string
	transport http.RoundTripper
	stopGC    func() error
	closers   []closer
}

type closer struct {
	name string
	fn   func() error
}

// Option customizes New.
type Option func(*App)

// WithRepository skips backend selection and uses repo. The App still closes it.
func WithRepository(repo crawler.DocumentRepository) Option {
	return func(a *App) { a.repo = repo }
}

// WithTransport overrides the HTTP transport used for upstream calls.
func WithTransport(rt http.RoundTripper) Option {
	return func(a *App) { a.transport = rt }
}

// WithClock overrides the system clock.
func WithClock(c crawler.Clock) Option {
	return func(a *App) { a.clock = c }
}

// New opens the document store and the optional change feed and seen filter.
// It fails fast when any configured backend cannot be reached; resources opened
// before the failure are closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		stats:  crawler.NewStats(),
		clock:  system.New(),
		ids:    uuid.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	runID, err := a.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	a.runID = runID
	a.logger = a.logger.With(zap.String("run_id", runID))

	if err := a.init(ctx); err != nil {
		if cerr := a.Close(); cerr != nil {
			a.logger.Warn("cleanup after failed init", zap.Error(cerr))
		}
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	if a.repo == nil {
		repo, err := a.openRepository(ctx)
		if err != nil {
			return err
		}
		a.repo = repo
	}
	a.onClose("document store", a.repo.Close)
	if a.stopGC != nil {
		a.onClose("badger gc", a.stopGC)
	}

	storeOpts := []document.Option{
		document.WithClock(a.clock),
		document.WithLogger(a.logger),
	}
	if a.cfg.Publish.Topic != "" {
		pub, err := pubsubpublisher.New(ctx, a.cfg.Publish.ProjectID)
		if err != nil {
			return fmt.Errorf("init change feed: %w", err)
		}
		a.onClose("pubsub publisher", pub.Close)
		storeOpts = append(storeOpts, document.WithPublisher(pub, a.cfg.Publish.Topic))
		a.logger.Info("change feed enabled", zap.String("topic", a.cfg.Publish.Topic))
	}
	a.store = document.NewAdapter(a.repo, storeOpts...)

	layers := seen.Layered{seen.NewMemory()}
	if a.cfg.Seen.RedisAddr != "" {
		tracker, rdb, err := redisseen.New(ctx, a.cfg.Seen.RedisAddr, a.cfg.Seen.TTL())
		if err != nil {
			return fmt.Errorf("init seen filter: %w", err)
		}
		a.onClose("redis", rdb.Close)
		layers = append(layers, tracker)
		a.logger.Info("shared seen filter enabled", zap.Duration("ttl", a.cfg.Seen.TTL()))
	}
	a.seen = layers

	logic := a.cfg.Logic
	a.pacer = politeness.New(logic.Delay())
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   a.cfg.Wikipedia.UserAgent,
		Timeout:     logic.RequestTimeoutDuration(),
		MaxBodySize: logic.MaxBodyBytes,
		Policy:      crawler.NewFixedRetryPolicy(logic.MaxRetries, logic.RetryWait()),
		Logger:      a.logger,
		Transport:   a.transport,
	})
	a.client = wiki.NewClient(fetcher, a.pacer, wiki.Config{
		BaseURL:        a.cfg.Wikipedia.BaseURL,
		ArticleBaseURL: a.cfg.Wikipedia.ArticleBaseURL,
	}, a.logger)
	a.logger.Info("wiki client ready",
		zap.String("api", a.cfg.Wikipedia.BaseURL),
		zap.Duration("politeness_delay", a.pacer.Delay()),
		zap.Int("max_retries", logic.MaxRetries),
	)
	return nil
}

func (a *App) openRepository(ctx context.Context) (crawler.DocumentRepository, error) {
	db := a.cfg.DB
	switch db.Backend {
	case config.BackendPostgres:
		a.logger.Info("connecting to postgres", zap.String("table", db.Collection))
		repo, err := pgstore.Open(ctx, pgstore.Config{
			DSN:      db.PostgresDSN(),
			Table:    db.Collection,
			MaxConns: int32(db.MaxConns),
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return repo, nil
	case config.BackendBadger:
		a.logger.Info("opening badger store", zap.String("path", db.Path))
		repo, err := badgerstore.Open(badgerstore.Config{
			Path:       db.Path,
			Collection: db.Collection,
			Logger:     a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		gcCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			repo.RunGC(gcCtx, badgerGCInterval)
		}()
		a.stopGC = func() error {
			cancel()
			<-done
			return nil
		}
		return repo, nil
	case config.BackendMemory:
		a.logger.Warn("using in-memory store; documents are lost on exit")
		return memorystore.NewDocumentRepository(), nil
	default:
		return nil, fmt.Errorf("%w: unknown db backend %q", crawler.ErrInvalidConfig, db.Backend)
	}
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// RunID identifies this invocation in logs and on the ops API.
func (a *App) RunID() string {
	return a.runID
}

// Repository exposes the document repository.
func (a *App) Repository() crawler.DocumentRepository {
	return a.repo
}

// Store exposes the upsert adapter.
func (a *App) Store() *document.Adapter {
	return a.store
}

// Stats returns the live counters shared by the pool and the ops API.
func (a *App) Stats() *crawler.Stats {
	return a.stats
}

// Runner builds the crawl pipeline: sources feed the worker pool and the
// reindex pass runs afterwards when enabled.
func (a *App) Runner() *crawl.Runner {
	logic := a.cfg.Logic
	w := worker.New(a.client, a.store, a.seen, worker.Config{MinWords: logic.MinWords}, a.logger)
	pool := dispatcher.New(w, a.store, a.pacer, dispatcher.Config{
		Workers:     logic.NumWorkers,
		Target:      logic.TargetDocumentCount,
		ReportEvery: logic.ReportEvery,
	}, a.stats, a.logger)
	return crawl.NewRunner(a.cfg.SourceSpecs(), a.client, pool, a.store, a.Reindexer(), crawl.Config{
		Target:            logic.TargetDocumentCount,
		CategoryLimit:     logic.CategoryLimit,
		RandomChunkSize:   logic.RandomChunkSize,
		ReindexAfterCrawl: logic.ReindexAfterCrawl,
	}, a.logger)
}

// Reindexer builds the stale-document scheduler.
func (a *App) Reindexer() *reindex.Scheduler {
	return reindex.New(a.repo, a.client, a.store, a.cfg.Logic.ReindexPeriod(),
		reindex.WithClock(a.clock),
		reindex.WithPacer(a.pacer),
		reindex.WithLogger(a.logger),
	)
}

// Exporter opens the configured artifact store and returns an Exporter writing to it.
func (a *App) Exporter(ctx context.Context) (*export.Exporter, error) {
	var store blob.Store
	switch a.cfg.Export.Backend {
	case config.ExportLocal:
		local, err := localblob.New(localblob.Config{BaseDir: a.cfg.Export.Dir})
		if err != nil {
			return nil, fmt.Errorf("open export dir: %w", err)
		}
		store = local
	case config.ExportGCS:
		gcs, err := gcsblob.Open(ctx, gcsblob.Config{Bucket: a.cfg.Export.Bucket}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open export bucket: %w", err)
		}
		a.onClose("gcs export bucket", gcs.Close)
		store = gcs
	default:
		return nil, fmt.Errorf("%w: unknown export backend %q", crawler.ErrInvalidConfig, a.cfg.Export.Backend)
	}
	// export.dir already roots local artifacts; the prefix only applies to buckets.
	prefix := a.cfg.Export.Prefix
	if a.cfg.Export.Backend == config.ExportLocal {
		prefix = ""
	}
	return export.New(a.repo, store, a.ids, prefix, a.logger), nil
}

// Restorer builds the backup loader for this App's document store.
func (a *App) Restorer() *restore.Restorer {
	return restore.New(a.repo, a.logger)
}

// Server builds the ops HTTP handler reporting on this App's run.
func (a *App) Server() *api.Server {
	return api.NewServer(a.repo, a.stats, a.clock, api.Config{
		RunID:  a.runID,
		Target: a.cfg.Logic.TargetDocumentCount,
	}, a.logger)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
