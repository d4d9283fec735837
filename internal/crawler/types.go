package crawler

import (
	"fmt"
	"time"
)

// Document is the durable record kept for every crawled article.
type Document struct {
	URL                string     `json:"url"`
	Title              string     `json:"title,omitempty"`
	RawContent         string     `json:"html_content"`
	ContentFingerprint string     `json:"content_hash"`
	Source             string     `json:"source"`
	CrawlTime          time.Time  `json:"crawl_date"`
	CreateTime         time.Time  `json:"create_date"`
	UpdateTime         *time.Time `json:"update_date,omitempty"`
}

// Title is a transient work item: an article name plus the source that found it.
type Title struct {
	Name   string
	Source string
}

// Article is the parsed body returned by the upstream parse call.
type Article struct {
	Title        string
	DisplayTitle string
	PageID       int64
	HTML         string
}

// Outcome classifies a single upsert attempt.
type Outcome int

// Upsert outcomes.
const (
	OutcomeError Outcome = iota
	OutcomeNew
	OutcomeUpdated
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNew:
		return "new"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// SourceType selects how a crawl source discovers titles.
type SourceType string

// Supported source types.
const (
	SourceCategory SourceType = "category"
	SourceRandom   SourceType = "random"
)

// ParseSourceType accepts both the short names and the legacy wikipedia_* aliases.
func ParseSourceType(raw string) (SourceType, error) {
	switch raw {
	case "", "category", "wikipedia_category":
		return SourceCategory, nil
	case "random", "wikipedia_random":
		return SourceRandom, nil
	default:
		return "", fmt.Errorf("%w: unknown source type %q", ErrInvalidConfig, raw)
	}
}

// SourceSpec describes one configured crawl source.
type SourceSpec struct {
	Name      string
	Type      SourceType
	Category  string
	BatchSize int
	Generator bool
}

// Progress describes store-wide progress toward the target document count.
type Progress struct {
	Total   int64   `json:"total"`
	Target  int64   `json:"target"`
	Percent float64 `json:"percent"`
}

// NewProgress computes the percentage, guarding against a zero target.
func NewProgress(total, target int64) Progress {
	p := Progress{Total: total, Target: target}
	if target > 0 {
		p.Percent = float64(total) / float64(target) * 100
	}
	return p
}

// Reached reports whether the total has met or exceeded the target.
func (p Progress) Reached() bool {
	return p.Target > 0 && p.Total >= p.Target
}

// String renders "total/target (pct%)".
func (p Progress) String() string {
	return fmt.Sprintf("%d/%d (%.1f%%)", p.Total, p.Target, p.Percent)
}
