package crawler

import (
	"context"
	"net/http"
	"time"
)

// FetchRequest captures everything needed to GET a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Attempts   int
}

// Fetcher performs a single logical GET, retrying transient failures internally.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// RetryPolicy bounds the number of fetch attempts and the pause between them.
type RetryPolicy interface {
	MaxAttempts() int
	Delay(attempt int) time.Duration
	ShouldRetry(err error, attempt int) bool
}

// TitleSource yields article titles to crawl, up to n of them.
type TitleSource interface {
	Titles(ctx context.Context, n int) ([]Title, error)
}

// ArticleFetcher retrieves the parsed body of a single article.
type ArticleFetcher interface {
	FetchArticle(ctx context.Context, title string) (Article, error)
	ArticleURL(title string) string
}

// UpsertRequest is the input to DocumentStore.Upsert.
type UpsertRequest struct {
	URL     string
	Title   string
	Content string
	Source  string
	Force   bool
}

// DocumentStore is the adapter the worker pool and reindexer write through.
type DocumentStore interface {
	Upsert(ctx context.Context, req UpsertRequest) (Outcome, error)
	Count(ctx context.Context) (int64, error)
}

// DocumentRepository is the persistence contract implemented by each storage backend.
type DocumentRepository interface {
	FindByURL(ctx context.Context, url string) (Document, error)
	Insert(ctx context.Context, doc Document) error
	Update(ctx context.Context, doc Document) error
	Count(ctx context.Context) (int64, error)
	// ListStale calls fn for every document whose crawl time is before cutoff.
	ListStale(ctx context.Context, cutoff time.Time, fn func(Document) error) error
	// Each calls fn for every document, stopping early once limit documents were visited (limit <= 0 means all).
	Each(ctx context.Context, limit int, fn func(Document) error) error
	CountBySource(ctx context.Context) (map[string]int64, error)
	Recent(ctx context.Context, n int) ([]Document, error)
	// DeleteAll removes every document and returns how many were removed.
	DeleteAll(ctx context.Context) (int64, error)
	Close() error
}

// Publisher pushes document change events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// SeenTracker filters titles that were already fetched recently. Forget releases a
// mark whose fetch failed so a later attempt is not filtered.
type SeenTracker interface {
	MarkIfNew(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Pacer enforces the politeness delay between upstream requests.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Hasher computes digests for change detection.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
