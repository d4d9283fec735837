// Package document implements the upsert-with-outcome adapter in front of a
// DocumentRepository: URL normalization, content fingerprinting and change detection.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikicrawler/internal/clock/system"
	"github.com/JakeFAU/wikicrawler/internal/crawler"
	"github.com/JakeFAU/wikicrawler/internal/hash/sha256"
)

// ChangeEvent is published for every New or Updated outcome.
type ChangeEvent struct {
	URL         string    `json:"url"`
	Title       string    `json:"title,omitempty"`
	Source      string    `json:"source"`
	Outcome     string    `json:"outcome"`
	Fingerprint string    `json:"content_hash"`
	CrawledAt   time.Time `json:"crawl_date"`
}

// Adapter implements crawler.DocumentStore.
type Adapter struct {
	repo      crawler.DocumentRepository
	hasher    crawler.Hasher
	clock     crawler.Clock
	publisher crawler.Publisher
	topic     string
	logger    *zap.Logger
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithHasher overrides the SHA-256 default.
func WithHasher(h crawler.Hasher) Option {
	return func(a *Adapter) { a.hasher = h }
}

// WithClock overrides the UTC system clock.
func WithClock(c crawler.Clock) Option {
	return func(a *Adapter) { a.clock = c }
}

// WithPublisher sends change events to topic.
func WithPublisher(p crawler.Publisher, topic string) Option {
	return func(a *Adapter) {
		a.publisher = p
		a.topic = topic
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter wraps repo.
func NewAdapter(repo crawler.DocumentRepository, opts ...Option) *Adapter {
	a := &Adapter{
		repo:   repo,
		hasher: sha256.New(),
		clock:  system.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("document")
	return a
}

// Upsert stores req.Content under the normalized URL. Identical content is Skipped
// unless req.Force is set. Store failures return OutcomeError with an error wrapping
// crawler.ErrStore; the adapter never retries.
func (a *Adapter) Upsert(ctx context.Context, req crawler.UpsertRequest) (crawler.Outcome, error) {
	key := NormalizeURL(req.URL)
	fingerprint, err := a.hasher.Hash([]byte(req.Content))
	if err != nil {
		return crawler.OutcomeError, fmt.Errorf("fingerprint %s: %w", key, err)
	}
	now := a.clock.Now()

	existing, err := a.repo.FindByURL(ctx, key)
	switch {
	case errors.Is(err, crawler.ErrNotFound):
		doc := crawler.Document{
			URL:                key,
			Title:              req.Title,
			RawContent:         req.Content,
			ContentFingerprint: fingerprint,
			Source:             req.Source,
			CrawlTime:          now,
			CreateTime:         now,
		}
		insertErr := a.repo.Insert(ctx, doc)
		if insertErr == nil {
			a.publish(ctx, crawler.OutcomeNew, doc)
			return crawler.OutcomeNew, nil
		}
		if !errors.Is(insertErr, crawler.ErrDuplicate) {
			return crawler.OutcomeError, storeErr("insert", key, insertErr)
		}
		// Another writer inserted the same URL first; compare against its copy.
		existing, err = a.repo.FindByURL(ctx, key)
		if err != nil {
			return crawler.OutcomeError, storeErr("find", key, err)
		}
	case err != nil:
		return crawler.OutcomeError, storeErr("find", key, err)
	}

	if existing.ContentFingerprint == fingerprint && !req.Force {
		return crawler.OutcomeSkipped, nil
	}

	existing.RawContent = req.Content
	existing.ContentFingerprint = fingerprint
	existing.CrawlTime = now
	existing.UpdateTime = &now
	if req.Title != "" {
		existing.Title = req.Title
	}
	if err := a.repo.Update(ctx, existing); err != nil {
		return crawler.OutcomeError, storeErr("update", key, err)
	}
	a.publish(ctx, crawler.OutcomeUpdated, existing)
	return crawler.OutcomeUpdated, nil
}

// Count returns the store-wide document count.
func (a *Adapter) Count(ctx context.Context) (int64, error) {
	n, err := a.repo.Count(ctx)
	if err != nil {
		return 0, storeErr("count", "", err)
	}
	return n, nil
}

// Progress reports the store total against target.
func (a *Adapter) Progress(ctx context.Context, target int64) (crawler.Progress, error) {
	n, err := a.Count(ctx)
	if err != nil {
		return crawler.Progress{}, err
	}
	return crawler.NewProgress(n, target), nil
}

func (a *Adapter) publish(ctx context.Context, outcome crawler.Outcome, doc crawler.Document) {
	if a.publisher == nil || a.topic == "" {
		return
	}
	event := ChangeEvent{
		URL:         doc.URL,
		Title:       doc.Title,
		Source:      doc.Source,
		Outcome:     outcome.String(),
		Fingerprint: doc.ContentFingerprint,
		CrawledAt:   doc.CrawlTime,
	}
	if _, err := a.publisher.Publish(ctx, a.topic, event); err != nil {
		a.logger.Warn("publish change event failed", zap.String("url", doc.URL), zap.Error(err))
	}
}

func storeErr(op, key string, err error) error {
	if errors.Is(err, crawler.ErrStore) {
		return fmt.Errorf("%s %s: %w", op, key, err)
	}
	return fmt.Errorf("%w: %s %s: %w", crawler.ErrStore, op, key, err)
}
