package wiki

import (
	"context"
	"net/url"
	"sync"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

// fakeFetcher answers each request with the next scripted body and records the query.
type fakeFetcher struct {
	mu      sync.Mutex
	bodies  []string
	errs    []error
	queries []url.Values
}

func (f *fakeFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := url.Parse(req.URL)
	if err != nil {
		return crawler.FetchResponse{}, err
	}
	f.queries = append(f.queries, u.Query())
	i := len(f.queries) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return crawler.FetchResponse{}, f.errs[i]
	}
	if i >= len(f.bodies) {
		return crawler.FetchResponse{StatusCode: 200, Body: []byte(`{}`)}, nil
	}
	return crawler.FetchResponse{StatusCode: 200, Body: []byte(f.bodies[i])}, nil
}

func (f *fakeFetcher) calls() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.queries...)
}

type countingPacer struct {
	mu    sync.Mutex
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	p.waits++
	p.mu.Unlock()
	return ctx.Err()
}

func newTestClient(f crawler.Fetcher, p crawler.Pacer) *Client {
	return NewClient(f, p, Config{
		BaseURL:        "https://tr.wikipedia.org/w/api.php",
		ArticleBaseURL: "https://tr.wikipedia.org/wiki",
	}, nil)
}
