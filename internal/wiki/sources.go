package wiki

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

// CategorySource pages through the members of one category.
type CategorySource struct {
	client   *Client
	category string
	source   string
}

// Category returns a TitleSource over category members, labeled with source.
func (c *Client) Category(category, source string) *CategorySource {
	return &CategorySource{client: c, category: category, source: source}
}

// Titles follows the continuation token until limit titles are collected or the
// upstream stops returning one. Listing failures end pagination and return what was
// collected; only context cancellation is reported as an error.
func (s *CategorySource) Titles(ctx context.Context, limit int) ([]crawler.Title, error) {
	var titles []crawler.Title
	cont := ""
	pages := 0
	for len(titles) < limit {
		if err := s.client.pacer.Wait(ctx); err != nil {
			return titles, err
		}
		body, err := s.client.get(ctx, s.client.categoryURL(s.category, limit-len(titles), cont))
		pages++
		if err != nil {
			return titles, s.client.stopListing(ctx, "categorymembers", err)
		}
		page, err := decodeCategoryPage(body)
		if err != nil {
			return titles, s.client.stopListing(ctx, "categorymembers", err)
		}
		for _, name := range page.Titles {
			titles = append(titles, crawler.Title{Name: name, Source: s.source})
		}
		if page.Continue == "" {
			break
		}
		cont = page.Continue
	}
	if len(titles) > limit {
		titles = titles[:limit]
	}
	s.client.logger.Info("category listed",
		zap.String("category", s.category),
		zap.Int("pages", pages),
		zap.Int("titles", len(titles)),
	)
	return titles, nil
}

// RandomSource samples random main-namespace titles.
type RandomSource struct {
	client    *Client
	source    string
	generator bool
}

// Random returns a random sampler. With generator set, it uses generator=random which
// allows up to 500 titles per call instead of 10.
func (c *Client) Random(source string, generator bool) *RandomSource {
	return &RandomSource{client: c, source: source, generator: generator}
}

// Titles requests batches until count unique titles are collected. An empty batch,
// or one that adds nothing new, is treated as exhaustion.
func (s *RandomSource) Titles(ctx context.Context, count int) ([]crawler.Title, error) {
	seen := make(map[string]struct{}, count)
	titles := make([]crawler.Title, 0, count)
	for len(titles) < count {
		if err := s.client.pacer.Wait(ctx); err != nil {
			return titles, err
		}
		remaining := count - len(titles)
		u := s.client.randomListURL(remaining)
		if s.generator {
			u = s.client.randomGeneratorURL(remaining)
		}
		body, err := s.client.get(ctx, u)
		if err != nil {
			return titles, s.client.stopListing(ctx, "random", err)
		}
		batch, err := decodeRandomBatch(body)
		if err != nil {
			return titles, s.client.stopListing(ctx, "random", err)
		}
		added := 0
		for _, name := range batch {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			titles = append(titles, crawler.Title{Name: name, Source: s.source})
			added++
		}
		if added == 0 {
			s.client.logger.Debug("random sample exhausted", zap.Int("collected", len(titles)))
			break
		}
	}
	if len(titles) > count {
		titles = titles[:count]
	}
	return titles, nil
}
