// Package export writes stored documents out as indexer TSV or a JSONL backup.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/wikicrawler/internal/blob"
	"github.com/JakeFAU/wikicrawler/internal/crawler"
	"github.com/JakeFAU/wikicrawler/internal/text"
)

// Supported formats.
const (
	FormatTSV   = "tsv"
	FormatJSONL = "jsonl"
)

// minTextChars drops near-empty pages from the indexer feed.
const minTextChars = 100

// Request selects what to export.
type Request struct {
	Format string
	// Name is the object name below the configured prefix; empty picks a generated name.
	Name string
	// Limit caps the number of documents visited; zero exports everything.
	Limit int
}

// Result summarizes a finished export.
type Result struct {
	URI      string `json:"uri"`
	Exported int    `json:"exported"`
	Skipped  int    `json:"skipped"`
}

// Exporter streams documents from a repository into a blob store.
type Exporter struct {
	repo   crawler.DocumentRepository
	store  blob.Store
	ids    crawler.IDGenerator
	prefix string
	logger *zap.Logger
}

// New builds an Exporter. ids names exports that were not given a name.
func New(repo crawler.DocumentRepository, store blob.Store, ids crawler.IDGenerator, prefix string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		repo:   repo,
		store:  store,
		ids:    ids,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.Named("export"),
	}
}

// Export encodes documents while the blob store consumes the stream, so the whole
// export never sits in memory.
func (e *Exporter) Export(ctx context.Context, req Request) (Result, error) {
	encode, contentType, err := encoderFor(req.Format)
	if err != nil {
		return Result{}, err
	}
	name, err := e.objectName(req)
	if err != nil {
		return Result{}, err
	}

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	var res Result

	g.Go(func() error {
		w := bufio.NewWriter(pw)
		docID := 0
		err := e.repo.Each(gctx, req.Limit, func(d crawler.Document) error {
			docID++
			ok, err := encode(w, docID, d)
			if err != nil {
				return err
			}
			if ok {
				res.Exported++
			} else {
				res.Skipped++
			}
			return nil
		})
		if err == nil {
			err = w.Flush()
		}
		pw.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		uri, err := e.store.PutObject(gctx, name, contentType, pr)
		if err != nil {
			pr.CloseWithError(err)
			return fmt.Errorf("upload %s: %w", name, err)
		}
		res.URI = uri
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	e.logger.Info("export finished",
		zap.String("uri", res.URI),
		zap.String("format", req.Format),
		zap.Int("exported", res.Exported),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (e *Exporter) objectName(req Request) (string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		if e.ids == nil {
			return "", fmt.Errorf("%w: export name is required", crawler.ErrInvalidConfig)
		}
		id, err := e.ids.NewID()
		if err != nil {
			return "", err
		}
		name = "export-" + id + "." + req.Format
	}
	if e.prefix == "" {
		return name, nil
	}
	return path.Join(e.prefix, name), nil
}

type encoder func(w io.Writer, docID int, d crawler.Document) (bool, error)

func encoderFor(format string) (encoder, string, error) {
	switch format {
	case FormatTSV:
		return encodeTSV, "text/tab-separated-values; charset=utf-8", nil
	case FormatJSONL:
		return encodeJSONL, "application/x-ndjson", nil
	default:
		return nil, "", fmt.Errorf("%w: unknown export format %q", crawler.ErrInvalidConfig, format)
	}
}

// encodeTSV writes "doc_id\turl\ttitle\tcontent". docID counts every visited document,
// skipped ones included, so IDs stay stable for a given store order.
func encodeTSV(w io.Writer, docID int, d crawler.Document) (bool, error) {
	plain, err := text.Extract(d.RawContent)
	if err != nil {
		return false, nil
	}
	content := text.Flatten(plain)
	if utf8.RuneCountInString(content) < minTextChars {
		return false, nil
	}
	title := d.Title
	if title == "" {
		title = fallbackTitle(d.RawContent, content)
	}
	line := strconv.Itoa(docID) + "\t" + text.Flatten(d.URL) + "\t" + text.Flatten(title) + "\t" + content + "\n"
	_, err = io.WriteString(w, line)
	return err == nil, err
}

func fallbackTitle(html, content string) string {
	if h := text.Heading(html); h != "" {
		return h
	}
	if utf8.RuneCountInString(content) > minTextChars {
		runes := []rune(content)
		return string(runes[:97]) + "..."
	}
	if content == "" {
		return "Untitled"
	}
	return content
}

func encodeJSONL(w io.Writer, _ int, d crawler.Document) (bool, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", d.URL, err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return false, err
	}
	return true, nil
}
