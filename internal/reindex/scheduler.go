// Package reindex re-fetches documents whose crawl time has gone stale and refreshes them.
package reindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikicrawler/internal/clock/system"
	"github.com/JakeFAU/wikicrawler/internal/crawler"
	"github.com/JakeFAU/wikicrawler/internal/wiki"
)

// Scheduler drives stale-document refreshes.
type Scheduler struct {
	repo     crawler.DocumentRepository
	articles crawler.ArticleFetcher
	store    crawler.DocumentStore
	pacer    crawler.Pacer
	clock    crawler.Clock
	period   time.Duration
	logger   *zap.Logger
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used for the staleness cutoff.
func WithClock(c crawler.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithPacer spaces re-fetches by the politeness delay.
func WithPacer(p crawler.Pacer) Option {
	return func(s *Scheduler) { s.pacer = p }
}

// WithLogger sets the scheduler logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a Scheduler that treats documents older than period as stale.
func New(
	repo crawler.DocumentRepository,
	articles crawler.ArticleFetcher,
	store crawler.DocumentStore,
	period time.Duration,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		repo:     repo,
		articles: articles,
		store:    store,
		period:   period,
		clock:    system.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("reindex")
	return s
}

type staleDoc struct {
	url    string
	title  string
	source string
}

// Reindex refreshes every document crawled before now minus the period and returns
// how many were re-upserted. Per-document failures are logged and skipped; only
// context cancellation or a failed scan ends the pass early.
func (s *Scheduler) Reindex(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.period)
	var stale []staleDoc
	err := s.repo.ListStale(ctx, cutoff, func(d crawler.Document) error {
		stale = append(stale, staleDoc{url: d.URL, title: d.Title, source: d.Source})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("list stale documents: %w", err)
	}
	s.logger.Info("reindex started", zap.Time("cutoff", cutoff), zap.Int("stale", len(stale)))

	refreshed := 0
	for _, doc := range stale {
		title := doc.title
		if title == "" {
			title = wiki.TitleFromURL(doc.url)
		}
		if strings.TrimSpace(title) == "" {
			s.logger.Warn("cannot derive title, skipping", zap.String("url", doc.url))
			continue
		}
		if s.pacer != nil {
			if err := s.pacer.Wait(ctx); err != nil {
				return refreshed, err
			}
		}
		if err := s.refresh(ctx, doc, title); err != nil {
			if ctx.Err() != nil {
				return refreshed, ctx.Err()
			}
			s.logger.Error("reindex failed", zap.String("url", doc.url), zap.String("title", title), zap.Error(err))
			continue
		}
		refreshed++
	}
	s.logger.Info("reindex finished", zap.Int("refreshed", refreshed), zap.Int("stale", len(stale)))
	return refreshed, nil
}

func (s *Scheduler) refresh(ctx context.Context, doc staleDoc, title string) error {
	article, err := s.articles.FetchArticle(ctx, title)
	if err != nil {
		return err
	}
	if strings.TrimSpace(article.HTML) == "" {
		return errors.New("empty article body")
	}
	_, err = s.store.Upsert(ctx, crawler.UpsertRequest{
		URL:     doc.url,
		Title:   title,
		Content: article.HTML,
		Source:  doc.source,
		Force:   true,
	})
	return err
}

// Watch runs Reindex immediately and then every interval until ctx ends.
func (s *Scheduler) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: watch interval must be positive", crawler.ErrInvalidConfig)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Reindex(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("reindex pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
