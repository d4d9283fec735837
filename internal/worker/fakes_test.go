package worker

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

type fakeArticles struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  []string
}

func (f *fakeArticles) FetchArticle(_ context.Context, title string) (crawler.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, title)
	if err, ok := f.errs[title]; ok {
		return crawler.Article{}, err
	}
	body, ok := f.bodies[title]
	if !ok {
		return crawler.Article{}, errors.New("missing page")
	}
	return crawler.Article{Title: title, HTML: body}, nil
}

func (f *fakeArticles) ArticleURL(title string) string {
	return "https://tr.wikipedia.org/wiki/" + strings.ReplaceAll(title, " ", "_")
}

type fakeStore struct {
	mu       sync.Mutex
	requests []crawler.UpsertRequest
	outcome  crawler.Outcome
	err      error
}

func (s *fakeStore) Upsert(_ context.Context, req crawler.UpsertRequest) (crawler.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return crawler.OutcomeError, s.err
	}
	return s.outcome, nil
}

func (s *fakeStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.requests)), nil
}

type fakeSeen struct {
	seen map[string]bool
	err  error
}

func (f *fakeSeen) Forget(_ context.Context, key string) error {
	delete(f.seen, key)
	return nil
}

func (f *fakeSeen) MarkIfNew(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func words(n int) string {
	return "<p>" + strings.TrimSpace(strings.Repeat("kelime ", n)) + "</p>"
}
