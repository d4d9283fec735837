// Package badger stores documents in an embedded BadgerDB so a single-host crawl
// can persist state without an external database.
package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

const maxConflictRetries = 10

// Config selects the on-disk location and key namespace.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path       string
	Collection string
	InMemory   bool
	Logger     *zap.Logger
}

// DocumentRepository implements crawler.DocumentRepository with one JSON value per URL.
// A second key per document holds only the fields scans sort and group by, so
// iteration never decodes page bodies it does not hand to the caller.
type DocumentRepository struct {
	db     *badgerdb.DB
	docs   []byte
	meta   []byte
	logger *zap.Logger
}

// docMeta is the small index record stored under the meta prefix.
type docMeta struct {
	URL        string    `json:"u"`
	Source     string    `json:"s"`
	CrawlTime  time.Time `json:"c"`
	CreateTime time.Time `json:"t"`
}

func metaOf(d crawler.Document) docMeta {
	return docMeta{URL: d.URL, Source: d.Source, CrawlTime: d.CrawlTime, CreateTime: d.CreateTime}
}

// Open creates the directory if needed, opens the database and indexes any
// documents written without a meta record.
func Open(cfg Config) (*DocumentRepository, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("badger")
	collection := cfg.Collection
	if collection == "" {
		collection = "documents"
	}

	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: badger path is required", crawler.ErrInvalidConfig)
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create badger dir %s: %w", crawler.ErrStore, cfg.Path, err)
		}
		opts = badgerdb.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(zapAdapter{logger.Sugar()}).WithNumVersionsToKeep(1)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %w", crawler.ErrStore, err)
	}
	repo := newRepository(db, collection, logger)
	indexed, err := repo.backfillMeta()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: index documents: %w", crawler.ErrStore, err)
	}
	logger.Info("badger store opened",
		zap.String("path", cfg.Path),
		zap.Bool("in_memory", cfg.InMemory),
		zap.Int("reindexed", indexed),
	)
	return repo, nil
}

func newRepository(db *badgerdb.DB, collection string, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		docs:   []byte(collection + ":doc:"),
		meta:   []byte(collection + ":meta:"),
		logger: logger,
	}
}

func (r *DocumentRepository) key(url string) []byte {
	return prefixed(r.docs, url)
}

func (r *DocumentRepository) metaKey(url string) []byte {
	return prefixed(r.meta, url)
}

func prefixed(prefix []byte, url string) []byte {
	k := make([]byte, 0, len(prefix)+len(url))
	k = append(k, prefix...)
	return append(k, url...)
}

// update retries badger transaction conflicts, which clear quickly under contention.
func (r *DocumentRepository) update(fn func(txn *badgerdb.Txn) error) error {
	for i := range maxConflictRetries {
		err := r.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
		r.logger.Debug("transaction conflict, retrying", zap.Int("attempt", i+1))
	}
	return fmt.Errorf("%w: transaction conflict after %d retries", crawler.ErrStore, maxConflictRetries)
}

// FindByURL loads one document or returns crawler.ErrNotFound.
func (r *DocumentRepository) FindByURL(_ context.Context, url string) (crawler.Document, error) {
	var doc crawler.Document
	err := r.db.View(func(txn *badgerdb.Txn) error {
		var err error
		doc, err = r.get(txn, url)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return crawler.Document{}, crawler.ErrNotFound
	}
	if err != nil {
		return crawler.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) get(txn *badgerdb.Txn, url string) (crawler.Document, error) {
	var doc crawler.Document
	item, err := txn.Get(r.key(url))
	if err != nil {
		return doc, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	})
	return doc, err
}

// Insert stores a new document; an existing key yields crawler.ErrDuplicate.
func (r *DocumentRepository) Insert(_ context.Context, doc crawler.Document) error {
	val, meta, err := encode(doc)
	if err != nil {
		return err
	}
	return r.update(func(txn *badgerdb.Txn) error {
		k := r.key(doc.URL)
		_, err := txn.Get(k)
		switch {
		case err == nil:
			return crawler.ErrDuplicate
		case !errors.Is(err, badgerdb.ErrKeyNotFound):
			return fmt.Errorf("get document: %w", err)
		}
		if err := txn.Set(k, val); err != nil {
			return err
		}
		return txn.Set(r.metaKey(doc.URL), meta)
	})
}

// Update replaces an existing document; a missing key yields crawler.ErrNotFound.
func (r *DocumentRepository) Update(_ context.Context, doc crawler.Document) error {
	val, meta, err := encode(doc)
	if err != nil {
		return err
	}
	return r.update(func(txn *badgerdb.Txn) error {
		k := r.key(doc.URL)
		_, err := txn.Get(k)
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return crawler.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get document: %w", err)
		}
		if err := txn.Set(k, val); err != nil {
			return err
		}
		return txn.Set(r.metaKey(doc.URL), meta)
	})
}

func encode(doc crawler.Document) (val, meta []byte, err error) {
	if val, err = json.Marshal(doc); err != nil {
		return nil, nil, fmt.Errorf("encode document: %w", err)
	}
	if meta, err = json.Marshal(metaOf(doc)); err != nil {
		return nil, nil, fmt.Errorf("encode document meta: %w", err)
	}
	return val, meta, nil
}

// Count walks the key space without loading values.
func (r *DocumentRepository) Count(_ context.Context) (int64, error) {
	var n int64
	err := r.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = r.docs
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(r.docs); it.ValidForPrefix(r.docs); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// DeleteAll removes every document and index record in the collection.
func (r *DocumentRepository) DeleteAll(_ context.Context) (int64, error) {
	var (
		keys [][]byte
		n    int64
	)
	err := r.db.View(func(txn *badgerdb.Txn) error {
		for _, prefix := range [][]byte{r.docs, r.meta} {
			opts := badgerdb.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
				if bytes.Equal(prefix, r.docs) {
					n++
				}
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}
	wb := r.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("delete documents: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	return n, nil
}

// ListStale visits documents crawled before cutoff, oldest first.
func (r *DocumentRepository) ListStale(ctx context.Context, cutoff time.Time, fn func(crawler.Document) error) error {
	metas, err := r.scanMeta(func(m docMeta) bool { return m.CrawlTime.Before(cutoff) })
	if err != nil {
		return err
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].CrawlTime.Equal(metas[j].CrawlTime) {
			return metas[i].URL < metas[j].URL
		}
		return metas[i].CrawlTime.Before(metas[j].CrawlTime)
	})
	return r.visit(ctx, metas, 0, fn)
}

// Each visits documents in creation order, at most limit of them when limit > 0.
// Bodies are loaded one at a time as fn consumes them.
func (r *DocumentRepository) Each(ctx context.Context, limit int, fn func(crawler.Document) error) error {
	metas, err := r.scanMeta(nil)
	if err != nil {
		return err
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].CreateTime.Equal(metas[j].CreateTime) {
			return metas[i].URL < metas[j].URL
		}
		return metas[i].CreateTime.Before(metas[j].CreateTime)
	})
	return r.visit(ctx, metas, limit, fn)
}

// CountBySource groups the document count by source label.
func (r *DocumentRepository) CountBySource(_ context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	_, err := r.scanMeta(func(m docMeta) bool {
		out[m.Source]++
		return false
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Recent returns up to n documents, most recently crawled first.
func (r *DocumentRepository) Recent(ctx context.Context, n int) ([]crawler.Document, error) {
	metas, err := r.scanMeta(nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].CrawlTime.Equal(metas[j].CrawlTime) {
			return metas[i].URL < metas[j].URL
		}
		return metas[i].CrawlTime.After(metas[j].CrawlTime)
	})
	if n >= 0 && len(metas) > n {
		metas = metas[:n]
	}
	out := make([]crawler.Document, 0, len(metas))
	err = r.visit(ctx, metas, 0, func(d crawler.Document) error {
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RunGC reclaims value log space every interval until ctx is done.
func (r *DocumentRepository) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.db.IsClosed() {
				return
			}
			var err error
			for err == nil {
				err = r.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badgerdb.ErrNoRewrite) {
				r.logger.Warn("value log gc failed", zap.Error(err))
			}
		}
	}
}

// Close flushes and closes the database.
func (r *DocumentRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// scanMeta decodes every meta record and returns those keep accepts.
func (r *DocumentRepository) scanMeta(keep func(docMeta) bool) ([]docMeta, error) {
	var out []docMeta
	err := r.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = r.meta
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(r.meta); it.ValidForPrefix(r.meta); it.Next() {
			var m docMeta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if keep == nil || keep(m) {
				out = append(out, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	return out, nil
}

// visit loads each listed document in its own read transaction so fn never
// runs while a transaction is held open.
func (r *DocumentRepository) visit(ctx context.Context, metas []docMeta, limit int, fn func(crawler.Document) error) error {
	for i, m := range metas {
		if limit > 0 && i >= limit {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := r.FindByURL(ctx, m.URL)
		if errors.Is(err, crawler.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

// backfillMeta writes meta records for documents stored without one.
func (r *DocumentRepository) backfillMeta() (int, error) {
	var missing []string
	err := r.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = r.docs
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(r.docs); it.ValidForPrefix(r.docs); it.Next() {
			url := string(it.Item().Key()[len(r.docs):])
			_, err := txn.Get(r.metaKey(url))
			switch {
			case errors.Is(err, badgerdb.ErrKeyNotFound):
				missing = append(missing, url)
			case err != nil:
				return err
			}
		}
		return nil
	})
	if err != nil || len(missing) == 0 {
		return 0, err
	}

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()
	for _, url := range missing {
		doc, err := r.FindByURL(context.Background(), url)
		if err != nil {
			return 0, err
		}
		meta, err := json.Marshal(metaOf(doc))
		if err != nil {
			return 0, err
		}
		if err := wb.Set(r.metaKey(url), meta); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(missing), nil
}

// zapAdapter routes badger's internal logging through zap.
type zapAdapter struct {
	*zap.SugaredLogger
}

func (l zapAdapter) Warningf(format string, args ...any) {
	l.Warnf(format, args...)
}
