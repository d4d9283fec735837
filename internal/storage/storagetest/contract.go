// Package storagetest holds the behavioral contract every DocumentRepository backend must meet.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

// Factory returns a fresh, empty repository for one subtest.
type Factory func(t *testing.T) crawler.DocumentRepository

var base = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func doc(url, source string, age time.Duration) crawler.Document {
	ts := base.Add(-age)
	return crawler.Document{
		URL:                url,
		Title:              url,
		RawContent:         "<p>" + url + "</p>",
		ContentFingerprint: "fp-" + url,
		Source:             source,
		CrawlTime:          ts,
		CreateTime:         ts,
	}
}

// Run exercises insert/find/update semantics, stale scans, iteration and aggregates.
func Run(t *testing.T, newRepo Factory) {
	t.Helper()

	t.Run("insert find update", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.FindByURL(ctx, "https://x.org/wiki/a")
		require.ErrorIs(t, err, crawler.ErrNotFound)

		d := doc("https://x.org/wiki/a", "science", time.Hour)
		require.NoError(t, repo.Insert(ctx, d))
		require.ErrorIs(t, repo.Insert(ctx, d), crawler.ErrDuplicate)

		got, err := repo.FindByURL(ctx, d.URL)
		require.NoError(t, err)
		require.Equal(t, d.ContentFingerprint, got.ContentFingerprint)
		require.Equal(t, d.Title, got.Title)
		require.Nil(t, got.UpdateTime)
		require.True(t, d.CrawlTime.Equal(got.CrawlTime))

		updated := base
		got.RawContent = "<p>changed</p>"
		got.ContentFingerprint = "fp-changed"
		got.CrawlTime = updated
		got.UpdateTime = &updated
		require.NoError(t, repo.Update(ctx, got))

		again, err := repo.FindByURL(ctx, d.URL)
		require.NoError(t, err)
		require.Equal(t, "fp-changed", again.ContentFingerprint)
		require.NotNil(t, again.UpdateTime)
		require.True(t, updated.Equal(*again.UpdateTime))
		require.True(t, d.CreateTime.Equal(again.CreateTime))

		missing := doc("https://x.org/wiki/missing", "science", 0)
		require.ErrorIs(t, repo.Update(ctx, missing), crawler.ErrNotFound)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	})

	t.Run("stale scan and aggregates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Insert(ctx, doc("https://x.org/wiki/old", "science", 30*24*time.Hour)))
		require.NoError(t, repo.Insert(ctx, doc("https://x.org/wiki/older", "random", 40*24*time.Hour)))
		require.NoError(t, repo.Insert(ctx, doc("https://x.org/wiki/fresh", "random", time.Hour)))

		var stale []string
		err := repo.ListStale(ctx, base.Add(-7*24*time.Hour), func(d crawler.Document) error {
			stale = append(stale, d.URL)
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []string{"https://x.org/wiki/older", "https://x.org/wiki/old"}, stale)

		bySource, err := repo.CountBySource(ctx)
		require.NoError(t, err)
		require.Equal(t, map[string]int64{"science": 1, "random": 2}, bySource)

		recent, err := repo.Recent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		require.Equal(t, "https://x.org/wiki/fresh", recent[0].URL)
		require.Equal(t, "https://x.org/wiki/old", recent[1].URL)

		var all []string
		require.NoError(t, repo.Each(ctx, 0, func(d crawler.Document) error {
			all = append(all, d.URL)
			return nil
		}))
		require.ElementsMatch(t, []string{"https://x.org/wiki/old", "https://x.org/wiki/older", "https://x.org/wiki/fresh"}, all)

		var limited int
		require.NoError(t, repo.Each(ctx, 2, func(crawler.Document) error {
			limited++
			return nil
		}))
		require.Equal(t, 2, limited)

		stop := errors.New("stop")
		err = repo.Each(ctx, 0, func(crawler.Document) error { return stop })
		require.ErrorIs(t, err, stop)
	})
	t.Run("delete all", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Insert(ctx, doc("https://x.org/wiki/a", "science", time.Hour)))
		require.NoError(t, repo.Insert(ctx, doc("https://x.org/wiki/b", "random", time.Hour)))

		n, err := repo.DeleteAll(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		require.Zero(t, count)
		bySource, err := repo.CountBySource(ctx)
		require.NoError(t, err)
		require.Empty(t, bySource)
		_, err = repo.FindByURL(ctx, "https://x.org/wiki/a")
		require.ErrorIs(t, err, crawler.ErrNotFound)

		require.NoError(t, repo.Insert(ctx, doc("https://x.org/wiki/a", "science", time.Hour)))
	})
}
