// Package worker implements the per-title unit of work: fetch, filter, upsert.
package worker

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
	"github.com/JakeFAU/wikicrawler/internal/metrics"
	"github.com/JakeFAU/wikicrawler/internal/text"
)

// Discard reasons reported to metrics and logs.
const (
	ReasonSeen        = "seen"
	ReasonFetchFailed = "fetch_failed"
	ReasonEmpty       = "empty_body"
	ReasonTooShort    = "min_words"
)

// Config controls Worker behavior.
type Config struct {
	MinWords int
}

// Result describes what happened to one title.
type Result struct {
	Title   crawler.Title
	URL     string
	Outcome crawler.Outcome
	// Discarded is set when the title produced no upsert; Reason says why.
	Discarded bool
	Reason    string
	Err       error
}

// Worker turns titles into stored documents. It holds no per-call state and is
// safe for concurrent use by every goroutine in the pool.
type Worker struct {
	articles crawler.ArticleFetcher
	store    crawler.DocumentStore
	seen     crawler.SeenTracker
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker. seen may be nil to disable the recently-fetched filter.
func New(
	articles crawler.ArticleFetcher,
	store crawler.DocumentStore,
	seen crawler.SeenTracker,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		articles: articles,
		store:    store,
		seen:     seen,
		cfg:      cfg,
		logger:   logger.Named("worker"),
	}
}

// Process runs one unit of work and records it in stats. Fetch failures count as
// errors without counting as processed; the other discards count as neither.
func (w *Worker) Process(ctx context.Context, title crawler.Title, stats *crawler.Stats) Result {
	res := Result{Title: title}
	logger := w.logger.With(zap.String("title", title.Name), zap.String("source", title.Source))

	marked := false
	if w.seen != nil {
		fresh, err := w.seen.MarkIfNew(ctx, title.Name)
		switch {
		case err != nil:
			logger.Warn("seen filter unavailable", zap.Error(err))
		case !fresh:
			return w.discard(res, ReasonSeen, nil)
		default:
			marked = true
		}
	}

	article, err := w.articles.FetchArticle(ctx, title.Name)
	if err != nil {
		if stats != nil {
			stats.AddError()
		}
		if marked {
			// The mark outlives a cancelled run, so release it on a detached context.
			if ferr := w.seen.Forget(context.WithoutCancel(ctx), title.Name); ferr != nil {
				logger.Warn("release seen mark", zap.Error(ferr))
			}
		}
		if !errors.Is(err, context.Canceled) {
			logger.Warn("article fetch failed", zap.Error(err))
		}
		return w.discard(res, ReasonFetchFailed, err)
	}
	if strings.TrimSpace(article.HTML) == "" {
		return w.discard(res, ReasonEmpty, nil)
	}
	if words := text.WordCount(article.HTML); words < w.cfg.MinWords {
		logger.Debug("article below minimum word count", zap.Int("words", words), zap.Int("min_words", w.cfg.MinWords))
		return w.discard(res, ReasonTooShort, nil)
	}

	res.URL = w.articles.ArticleURL(title.Name)
	outcome, err := w.store.Upsert(ctx, crawler.UpsertRequest{
		URL:     res.URL,
		Title:   title.Name,
		Content: article.HTML,
		Source:  title.Source,
	})
	if err != nil {
		outcome = crawler.OutcomeError
		res.Err = err
		logger.Error("upsert failed", zap.String("url", res.URL), zap.Error(err))
	}
	res.Outcome = outcome
	if stats != nil {
		stats.Record(outcome)
	}
	metrics.ObserveOutcome(title.Source, outcome.String())
	logger.Debug("title processed", zap.String("url", res.URL), zap.Stringer("outcome", outcome))
	return res
}

func (w *Worker) discard(res Result, reason string, err error) Result {
	res.Discarded = true
	res.Reason = reason
	res.Err = err
	metrics.ObserveDiscard(res.Title.Source, reason)
	return res
}
