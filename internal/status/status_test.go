package status

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
	"github.com/JakeFAU/wikicrawler/internal/storage/memory"
)

func TestCollect(t *testing.T) {
	t.Parallel()

	repo := memory.NewDocumentRepository()
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, d := range []crawler.Document{
		{URL: "u1", Title: "Bir", Source: "science"},
		{URL: "u2", Title: "İki", Source: "random"},
		{URL: "u3", Title: "Üç", Source: "random"},
	} {
		d.CrawlTime = base.Add(time.Duration(i) * time.Hour)
		d.CreateTime = d.CrawlTime
		require.NoError(t, repo.Insert(ctx, d))
	}

	rep, err := Collect(ctx, repo, 12, 2)
	require.NoError(t, err)
	require.EqualValues(t, 3, rep.Progress.Total)
	require.InDelta(t, 25.0, rep.Progress.Percent, 0.001)
	require.Equal(t, []SourceCount{{"random", 2}, {"science", 1}}, rep.Sources)
	require.Len(t, rep.Recent, 2)
	require.Equal(t, "Üç", rep.Recent[0].Title)

	var out strings.Builder
	require.NoError(t, Render(&out, rep))
	require.Contains(t, out.String(), "Documents: 3/12 (25.0%)")
	require.Contains(t, out.String(), "  - random: 2\n")
	require.Contains(t, out.String(), "["+strings.Repeat("#", 12)+strings.Repeat(".", 38)+"]")
}

func TestBarClamps(t *testing.T) {
	t.Parallel()

	require.Equal(t, strings.Repeat("#", barWidth), bar(250))
	require.Equal(t, strings.Repeat(".", barWidth), bar(-5))
}
