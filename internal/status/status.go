// Package status summarizes store-wide crawl progress for the CLI and the ops API.
package status

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

const barWidth = 50

// SourceCount is the number of stored documents for one source label.
type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// Entry is a compact view of a recently crawled document.
type Entry struct {
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	Source    string     `json:"source"`
	CrawlTime time.Time  `json:"crawl_date"`
	Updated   *time.Time `json:"update_date,omitempty"`
}

// Report is a point-in-time view of the store.
type Report struct {
	Progress crawler.Progress `json:"progress"`
	Sources  []SourceCount    `json:"sources"`
	Recent   []Entry          `json:"recent"`
}

// Collect reads totals, per-source counts and the recent most documents.
func Collect(ctx context.Context, repo crawler.DocumentRepository, target int64, recent int) (Report, error) {
	total, err := repo.Count(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("count: %w", err)
	}
	bySource, err := repo.CountBySource(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("count by source: %w", err)
	}
	rep := Report{
		Progress: crawler.NewProgress(total, target),
		Sources:  SortSources(bySource),
	}
	if recent > 0 {
		docs, err := repo.Recent(ctx, recent)
		if err != nil {
			return Report{}, fmt.Errorf("recent: %w", err)
		}
		for _, d := range docs {
			rep.Recent = append(rep.Recent, Entry{
				URL:       d.URL,
				Title:     d.Title,
				Source:    d.Source,
				CrawlTime: d.CrawlTime,
				Updated:   d.UpdateTime,
			})
		}
	}
	return rep, nil
}

// SortSources orders counts largest first, ties by name.
func SortSources(bySource map[string]int64) []SourceCount {
	out := make([]SourceCount, 0, len(bySource))
	for s, n := range bySource {
		out = append(out, SourceCount{Source: s, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Source < out[j].Source
		}
		return out[i].Count > out[j].Count
	})
	return out
}

// Render writes a human-readable report.
func Render(w io.Writer, rep Report) error {
	var b strings.Builder
	if len(rep.Recent) > 0 {
		b.WriteString("Recently crawled:\n")
		for _, e := range rep.Recent {
			title := e.Title
			if title == "" {
				title = e.URL
			}
			fmt.Fprintf(&b, "  - %s [%s] %s\n", title, e.Source, e.CrawlTime.Format(time.DateTime))
		}
		b.WriteString("\n")
	}
	b.WriteString("By source:\n")
	for _, s := range rep.Sources {
		fmt.Fprintf(&b, "  - %s: %d\n", s.Source, s.Count)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Documents: %s\n", rep.Progress)
	fmt.Fprintf(&b, "  [%s]\n", bar(rep.Progress.Percent))
	_, err := io.WriteString(w, b.String())
	return err
}

func bar(percent float64) string {
	filled := int(barWidth * percent / 100)
	filled = max(0, min(barWidth, filled))
	return strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
}
