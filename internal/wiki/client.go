package wiki

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

// Config addresses the API endpoint and the public article path.
type Config struct {
	// BaseURL is the api.php endpoint.
	BaseURL string
	// ArticleBaseURL is prefixed to quoted titles to form canonical article URLs.
	ArticleBaseURL string
}

// Client issues MediaWiki API calls through a crawler.Fetcher.
type Client struct {
	fetcher     crawler.Fetcher
	pacer       crawler.Pacer
	baseURL     string
	articleBase string
	logger      *zap.Logger
}

// NewClient wires a Client. pacer throttles title discovery calls; nil disables pacing.
func NewClient(fetcher crawler.Fetcher, pacer crawler.Pacer, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pacer == nil {
		pacer = noPacer{}
	}
	base := cfg.ArticleBaseURL
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Client{
		fetcher:     fetcher,
		pacer:       pacer,
		baseURL:     cfg.BaseURL,
		articleBase: base,
		logger:      logger.Named("wiki"),
	}
}

// FetchArticle retrieves the parsed HTML body of title.
func (c *Client) FetchArticle(ctx context.Context, title string) (crawler.Article, error) {
	body, err := c.get(ctx, c.parseURL(title))
	if err != nil {
		return crawler.Article{}, err
	}
	article, err := decodeParse(body)
	if err != nil {
		return crawler.Article{}, fmt.Errorf("article %q: %w", title, err)
	}
	if article.Title == "" {
		article.Title = title
	}
	return article, nil
}

// ArticleURL returns the canonical page URL for title.
func (c *Client) ArticleURL(title string) string {
	return c.articleBase + quote(title)
}

// Source builds the TitleSource described by spec.
func (c *Client) Source(spec crawler.SourceSpec) (crawler.TitleSource, error) {
	switch spec.Type {
	case crawler.SourceCategory:
		if spec.Category == "" {
			return nil, fmt.Errorf("%w: source %q has no category", crawler.ErrInvalidConfig, spec.Name)
		}
		return c.Category(spec.Category, spec.Name), nil
	case crawler.SourceRandom:
		return c.Random(spec.Name, spec.Generator), nil
	default:
		return nil, fmt.Errorf("%w: source %q has unknown type %q", crawler.ErrInvalidConfig, spec.Name, spec.Type)
	}
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{URL: rawURL})
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("%w: empty response body", crawler.ErrUpstreamFormat)
	}
	return resp.Body, nil
}

// stopListing reports whether a listing error should end pagination silently.
func (c *Client) stopListing(ctx context.Context, call string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	level := c.logger.Warn
	if errors.Is(err, crawler.ErrUpstreamFormat) {
		level = c.logger.Error
	}
	level("title listing stopped", zap.String("call", call), zap.Error(err))
	return nil
}

type noPacer struct{}

func (noPacer) Wait(ctx context.Context) error {
	return ctx.Err()
}
