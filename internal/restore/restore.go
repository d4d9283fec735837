// Package restore loads a JSON lines backup produced by the jsonl export back
// into a document repository, keeping the stored timestamps.
package restore

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
	"github.com/JakeFAU/wikicrawler/internal/hash/sha256"
)

const defaultProgressEvery = 1000

// Options controls one restore.
type Options struct {
	// Replace empties the repository before loading.
	Replace bool
	// ProgressEvery logs a progress line after this many documents; zero uses 1000.
	ProgressEvery int
}

// Result summarizes a finished restore.
type Result struct {
	Cleared    int64 `json:"cleared"`
	Restored   int   `json:"restored"`
	Duplicates int   `json:"duplicates"`
	Total      int64 `json:"total"`
}

// Restorer inserts backed-up documents into a repository.
type Restorer struct {
	repo   crawler.DocumentRepository
	logger *zap.Logger
}

// New builds a Restorer.
func New(repo crawler.DocumentRepository, logger *zap.Logger) *Restorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Restorer{repo: repo, logger: logger.Named("restore")}
}

// Restore decodes documents from src one at a time and inserts them. Gzip input
// is detected from its magic bytes. URLs already present are left untouched and
// counted as duplicates. A malformed record aborts the restore.
func (r *Restorer) Restore(ctx context.Context, src io.Reader, opts Options) (Result, error) {
	var res Result
	every := opts.ProgressEvery
	if every <= 0 {
		every = defaultProgressEvery
	}

	in, err := maybeGunzip(src)
	if err != nil {
		return res, err
	}
	if opts.Replace {
		n, err := r.repo.DeleteAll(ctx)
		if err != nil {
			return res, fmt.Errorf("clear collection: %w", err)
		}
		res.Cleared = n
		r.logger.Info("collection cleared", zap.Int64("removed", n))
	}

	dec := json.NewDecoder(in)
	for record := 1; ; record++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var doc crawler.Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("decode record %d: %w", record, err)
		}
		if doc.URL == "" {
			return res, fmt.Errorf("record %d: missing url", record)
		}
		if doc.ContentFingerprint == "" {
			doc.ContentFingerprint = sha256.Fingerprint([]byte(doc.RawContent))
		}
		if doc.CreateTime.IsZero() {
			doc.CreateTime = doc.CrawlTime
		}

		switch err := r.repo.Insert(ctx, doc); {
		case errors.Is(err, crawler.ErrDuplicate):
			res.Duplicates++
		case err != nil:
			return res, fmt.Errorf("insert %s: %w", doc.URL, err)
		default:
			res.Restored++
		}
		if seen := res.Restored + res.Duplicates; seen%every == 0 {
			r.logger.Info("restore progress", zap.Int("restored", res.Restored), zap.Int("duplicates", res.Duplicates))
		}
	}

	total, err := r.repo.Count(ctx)
	if err != nil {
		return res, fmt.Errorf("count: %w", err)
	}
	res.Total = total
	r.logger.Info("restore finished",
		zap.Int("restored", res.Restored),
		zap.Int("duplicates", res.Duplicates),
		zap.Int64("total", res.Total),
	)
	return res, nil
}

func maybeGunzip(src io.Reader) (io.Reader, error) {
	br := bufio.NewReader(src)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip backup: %w", err)
		}
		return zr, nil
	}
	return br, nil
}
