// Package postgres provides the Postgres-backed DocumentRepository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "documents"

// Config controls the Postgres connection pool used for documents.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it in tests.
type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// DocumentRepository implements crawler.DocumentRepository on a single table keyed by url.
type DocumentRepository struct {
	pool  pool
	table string
}

// Open connects, pings and ensures the schema exists. Any failure here is returned
// wrapped in crawler.ErrStore so callers can abort before work begins.
func Open(ctx context.Context, cfg Config) (*DocumentRepository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: db dsn is required", crawler.ErrInvalidConfig)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parse postgres dsn: %w", crawler.ErrInvalidConfig, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %w", crawler.ErrStore, err)
	}
	repo, err := NewWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := repo.init(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return repo, nil
}

// NewWithPool constructs a repository from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*DocumentRepository, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", crawler.ErrInvalidConfig, table)
	}
	return &DocumentRepository{pool: p, table: table}, nil
}

func (r *DocumentRepository) init(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping postgres: %w", crawler.ErrStore, err)
	}
	return r.EnsureSchema(ctx)
}

// EnsureSchema creates the documents table and its crawl_date index when missing.
func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	table := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	url          TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	html_content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	crawl_date   TIMESTAMPTZ NOT NULL,
	create_date  TIMESTAMPTZ NOT NULL,
	update_date  TIMESTAMPTZ
)`, r.table)
	if _, err := r.pool.Exec(ctx, table); err != nil {
		return fmt.Errorf("%w: create table: %w", crawler.ErrStore, err)
	}
	index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_crawl_date_idx ON %s (crawl_date)`, r.table, r.table)
	if _, err := r.pool.Exec(ctx, index); err != nil {
		return fmt.Errorf("%w: create index: %w", crawler.ErrStore, err)
	}
	return nil
}

const columns = `url, title, html_content, content_hash, source, crawl_date, create_date, update_date`

// FindByURL loads one document or returns crawler.ErrNotFound.
func (r *DocumentRepository) FindByURL(ctx context.Context, url string) (crawler.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE url = $1`, columns, r.table)
	doc, err := scanDocument(r.pool.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Document{}, crawler.ErrNotFound
	}
	if err != nil {
		return crawler.Document{}, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

// Insert adds a new row; a conflicting url yields crawler.ErrDuplicate.
func (r *DocumentRepository) Insert(ctx context.Context, doc crawler.Document) error {
	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (url) DO NOTHING`, r.table, columns)
	tag, err := r.pool.Exec(ctx, query,
		doc.URL,
		doc.Title,
		doc.RawContent,
		doc.ContentFingerprint,
		doc.Source,
		doc.CrawlTime,
		doc.CreateTime,
		doc.UpdateTime,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawler.ErrDuplicate
	}
	return nil
}

// Update overwrites the mutable columns of an existing row.
func (r *DocumentRepository) Update(ctx context.Context, doc crawler.Document) error {
	query := fmt.Sprintf(`
UPDATE %s
SET title = $2, html_content = $3, content_hash = $4, crawl_date = $5, update_date = $6
WHERE url = $1`, r.table)
	tag, err := r.pool.Exec(ctx, query,
		doc.URL,
		doc.Title,
		doc.RawContent,
		doc.ContentFingerprint,
		doc.CrawlTime,
		doc.UpdateTime,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawler.ErrNotFound
	}
	return nil
}

// Count returns the number of rows.
func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// DeleteAll removes every row in the table.
func (r *DocumentRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, r.table))
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListStale streams rows crawled before cutoff, oldest first.
func (r *DocumentRepository) ListStale(ctx context.Context, cutoff time.Time, fn func(crawler.Document) error) error {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE crawl_date < $1 ORDER BY crawl_date, url`, columns, r.table)
	return r.stream(ctx, fn, query, cutoff)
}

// Each streams rows in creation order, at most limit of them when limit > 0.
func (r *DocumentRepository) Each(ctx context.Context, limit int, fn func(crawler.Document) error) error {
	if limit > 0 {
		query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY create_date, url LIMIT $1`, columns, r.table)
		return r.stream(ctx, fn, query, limit)
	}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY create_date, url`, columns, r.table)
	return r.stream(ctx, fn, query)
}

// CountBySource groups the row count by source label.
func (r *DocumentRepository) CountBySource(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT source, COUNT(*) FROM %s GROUP BY source`, r.table))
	if err != nil {
		return nil, fmt.Errorf("count by source: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var (
			source string
			n      int64
		)
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("scan source count: %w", err)
		}
		out[source] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source counts: %w", err)
	}
	return out, nil
}

// Recent returns up to n rows, most recently crawled first.
func (r *DocumentRepository) Recent(ctx context.Context, n int) ([]crawler.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY crawl_date DESC, url LIMIT $1`, columns, r.table)
	var out []crawler.Document
	err := r.stream(ctx, func(d crawler.Document) error {
		out = append(out, d)
		return nil
	}, query, n)
	return out, err
}

// Close releases the underlying pool resources.
func (r *DocumentRepository) Close() error {
	if r == nil || r.pool == nil {
		return nil
	}
	r.pool.Close()
	return nil
}

func (r *DocumentRepository) stream(ctx context.Context, fn func(crawler.Document) error, query string, args ...any) error {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return fmt.Errorf("scan document: %w", err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate documents: %w", err)
	}
	return nil
}

func scanDocument(row pgx.Row) (crawler.Document, error) {
	var (
		doc     crawler.Document
		updated pgtype.Timestamptz
	)
	err := row.Scan(
		&doc.URL,
		&doc.Title,
		&doc.RawContent,
		&doc.ContentFingerprint,
		&doc.Source,
		&doc.CrawlTime,
		&doc.CreateTime,
		&updated,
	)
	if err != nil {
		return crawler.Document{}, err
	}
	if updated.Valid {
		t := updated.Time
		doc.UpdateTime = &t
	}
	return doc, nil
}
