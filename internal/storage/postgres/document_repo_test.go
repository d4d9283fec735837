package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

var docColumns = []string{"url", "title", "html_content", "content_hash", "source", "crawl_date", "create_date", "update_date"}

func newMockRepo(t *testing.T) (*DocumentRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	repo, err := NewWithPool(mock, "documents")
	require.NoError(t, err)
	return repo, mock
}

func TestNewWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "documents; DROP TABLE x")
	require.ErrorIs(t, err, crawler.ErrInvalidConfig)
	_, err = NewWithPool(nil, "documents")
	require.Error(t, err)
}

func TestInitPingsAndCreatesSchema(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectPing()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS documents_crawl_date_idx").WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))

	require.NoError(t, repo.init(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInitPingFailureIsStoreError(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	err := repo.init(context.Background())
	require.ErrorIs(t, err, crawler.ErrStore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByURL(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	crawled := time.Unix(1700000000, 0).UTC()
	updated := crawled.Add(time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE url = \\$1").
		WithArgs("https://tr.wikipedia.org/wiki/kedi").
		WillReturnRows(pgxmock.NewRows(docColumns).
			AddRow("https://tr.wikipedia.org/wiki/kedi", "Kedi", "<p>x</p>", "abc", "animals", crawled, crawled, updated))
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE url = \\$1").
		WithArgs("https://tr.wikipedia.org/wiki/yok").
		WillReturnError(pgx.ErrNoRows)

	doc, err := repo.FindByURL(context.Background(), "https://tr.wikipedia.org/wiki/kedi")
	require.NoError(t, err)
	require.Equal(t, "Kedi", doc.Title)
	require.Equal(t, "abc", doc.ContentFingerprint)
	require.NotNil(t, doc.UpdateTime)
	require.True(t, updated.Equal(*doc.UpdateTime))

	_, err = repo.FindByURL(context.Background(), "https://tr.wikipedia.org/wiki/yok")
	require.ErrorIs(t, err, crawler.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByURLNullUpdateDate(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	crawled := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT (.+) FROM documents").
		WithArgs("u").
		WillReturnRows(pgxmock.NewRows(docColumns).AddRow("u", "", "c", "h", "s", crawled, crawled, nil))

	doc, err := repo.FindByURL(context.Background(), "u")
	require.NoError(t, err)
	require.Nil(t, doc.UpdateTime)
}

func TestInsertConflictIsDuplicate(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	now := time.Unix(1700000000, 0).UTC()
	doc := crawler.Document{URL: "u", Title: "T", RawContent: "c", ContentFingerprint: "h", Source: "s", CrawlTime: now, CreateTime: now}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("u", "T", "c", "h", "s", now, now, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("u", "T", "c", "h", "s", now, now, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, repo.Insert(context.Background(), doc))
	require.ErrorIs(t, repo.Insert(context.Background(), doc), crawler.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingRowIsNotFound(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	now := time.Unix(1700000000, 0).UTC()
	doc := crawler.Document{URL: "u", RawContent: "c2", ContentFingerprint: "h2", CrawlTime: now, UpdateTime: &now}

	mock.ExpectExec("UPDATE documents").
		WithArgs("u", "", "c2", "h2", now, &now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE documents").
		WithArgs("u", "", "c2", "h2", now, &now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.Update(context.Background(), doc))
	require.ErrorIs(t, repo.Update(context.Background(), doc), crawler.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAndCountBySource(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))
	mock.ExpectQuery("SELECT source, COUNT\\(\\*\\) FROM documents GROUP BY source").
		WillReturnRows(pgxmock.NewRows([]string{"source", "count"}).
			AddRow("science", int64(30)).
			AddRow("random", int64(12)))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 42, n)

	bySource, err := repo.CountBySource(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"science": 30, "random": 12}, bySource)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListStaleStreamsRows(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	cutoff := time.Unix(1700000000, 0).UTC()
	old := cutoff.Add(-48 * time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE crawl_date < \\$1 ORDER BY crawl_date, url").
		WithArgs(cutoff).
		WillReturnRows(pgxmock.NewRows(docColumns).
			AddRow("a", "A", "c", "h", "s", old, old, nil).
			AddRow("b", "B", "c", "h", "s", old, old, nil))

	var seen []string
	err := repo.ListStale(context.Background(), cutoff, func(d crawler.Document) error {
		seen = append(seen, d.Title)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, seen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEachAndRecentUseLimits(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	ts := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT (.+) FROM documents ORDER BY create_date, url LIMIT \\$1").
		WithArgs(1).
		WillReturnRows(pgxmock.NewRows(docColumns).AddRow("a", "A", "c", "h", "s", ts, ts, nil))
	mock.ExpectQuery("SELECT (.+) FROM documents ORDER BY crawl_date DESC, url LIMIT \\$1").
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows(docColumns).
			AddRow("b", "B", "c", "h", "s", ts, ts, nil).
			AddRow("a", "A", "c", "h", "s", ts, ts, nil))

	var each int
	require.NoError(t, repo.Each(context.Background(), 1, func(crawler.Document) error {
		each++
		return nil
	}))
	require.Equal(t, 1, each)

	recent, err := repo.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "b", recent[0].URL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAllReportsRows(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM documents").WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec("DELETE FROM documents").WillReturnError(errors.New("read only"))

	n, err := repo.DeleteAll(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
	_, err = repo.DeleteAll(context.Background())
	require.ErrorContains(t, err, "read only")
	require.NoError(t, mock.ExpectationsWereMet())
}
