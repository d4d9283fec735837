// Package memory keeps documents in a map for development runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

// DocumentRepository implements crawler.DocumentRepository in memory.
type DocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]crawler.Document
}

// NewDocumentRepository constructs an empty repository.
func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{docs: make(map[string]crawler.Document)}
}

// FindByURL returns the document stored under url or crawler.ErrNotFound.
func (r *DocumentRepository) FindByURL(_ context.Context, url string) (crawler.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[url]
	if !ok {
		return crawler.Document{}, crawler.ErrNotFound
	}
	return copyDoc(doc), nil
}

// Insert stores a new document; an existing URL yields crawler.ErrDuplicate.
func (r *DocumentRepository) Insert(_ context.Context, doc crawler.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[doc.URL]; exists {
		return crawler.ErrDuplicate
	}
	r.docs[doc.URL] = copyDoc(doc)
	return nil
}

// Update replaces an existing document.
func (r *DocumentRepository) Update(_ context.Context, doc crawler.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[doc.URL]; !exists {
		return crawler.ErrNotFound
	}
	r.docs[doc.URL] = copyDoc(doc)
	return nil
}

// Count returns the number of stored documents.
func (r *DocumentRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.docs)), nil
}

// ListStale visits documents crawled before cutoff, oldest first.
func (r *DocumentRepository) ListStale(ctx context.Context, cutoff time.Time, fn func(crawler.Document) error) error {
	docs := r.snapshot(func(d crawler.Document) bool { return d.CrawlTime.Before(cutoff) })
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CrawlTime.Equal(docs[j].CrawlTime) {
			return docs[i].URL < docs[j].URL
		}
		return docs[i].CrawlTime.Before(docs[j].CrawlTime)
	})
	return visit(ctx, docs, 0, fn)
}

// Each visits documents in creation order, at most limit of them when limit > 0.
func (r *DocumentRepository) Each(ctx context.Context, limit int, fn func(crawler.Document) error) error {
	docs := r.snapshot(nil)
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreateTime.Equal(docs[j].CreateTime) {
			return docs[i].URL < docs[j].URL
		}
		return docs[i].CreateTime.Before(docs[j].CreateTime)
	})
	return visit(ctx, docs, limit, fn)
}

// CountBySource groups the document count by source label.
func (r *DocumentRepository) CountBySource(_ context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int64)
	for _, d := range r.docs {
		out[d.Source]++
	}
	return out, nil
}

// Recent returns up to n documents, most recently crawled first.
func (r *DocumentRepository) Recent(_ context.Context, n int) ([]crawler.Document, error) {
	docs := r.snapshot(nil)
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CrawlTime.Equal(docs[j].CrawlTime) {
			return docs[i].URL < docs[j].URL
		}
		return docs[i].CrawlTime.After(docs[j].CrawlTime)
	})
	if n >= 0 && len(docs) > n {
		docs = docs[:n]
	}
	return docs, nil
}

// DeleteAll empties the repository.
func (r *DocumentRepository) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.docs))
	r.docs = make(map[string]crawler.Document)
	return n, nil
}

// Close is a no-op.
func (r *DocumentRepository) Close() error {
	return nil
}

func (r *DocumentRepository) snapshot(keep func(crawler.Document) bool) []crawler.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]crawler.Document, 0, len(r.docs))
	for _, d := range r.docs {
		if keep == nil || keep(d) {
			out = append(out, copyDoc(d))
		}
	}
	return out
}

func visit(ctx context.Context, docs []crawler.Document, limit int, fn func(crawler.Document) error) error {
	for i, d := range docs {
		if limit > 0 && i >= limit {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func copyDoc(d crawler.Document) crawler.Document {
	if d.UpdateTime != nil {
		t := *d.UpdateTime
		d.UpdateTime = &t
	}
	return d
}
