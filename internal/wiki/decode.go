package wiki

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type categoryPage struct {
	Titles   []string
	Continue string
}

type categoryResponse struct {
	Error    *apiError `json:"error"`
	Continue *struct {
		CMContinue string `json:"cmcontinue"`
	} `json:"continue"`
	Query *struct {
		CategoryMembers *[]struct {
			Title string `json:"title"`
		} `json:"categorymembers"`
	} `json:"query"`
}

func decodeCategoryPage(body []byte) (categoryPage, error) {
	var resp categoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return categoryPage{}, formatErr("category", err)
	}
	if resp.Error != nil {
		return categoryPage{}, apiErr("category", resp.Error)
	}
	if resp.Query == nil || resp.Query.CategoryMembers == nil {
		return categoryPage{}, missing("category", "query.categorymembers")
	}
	page := categoryPage{}
	for _, m := range *resp.Query.CategoryMembers {
		if m.Title != "" {
			page.Titles = append(page.Titles, m.Title)
		}
	}
	if resp.Continue != nil {
		page.Continue = resp.Continue.CMContinue
	}
	return page, nil
}

type randomResponse struct {
	Error *apiError `json:"error"`
	Query *struct {
		Random *[]struct {
			Title string `json:"title"`
		} `json:"random"`
		Pages map[string]struct {
			Title string `json:"title"`
		} `json:"pages"`
	} `json:"query"`
}

// decodeRandomBatch accepts both the list=random and the generator=random shapes.
func decodeRandomBatch(body []byte) ([]string, error) {
	var resp randomResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, formatErr("random", err)
	}
	if resp.Error != nil {
		return nil, apiErr("random", resp.Error)
	}
	if resp.Query == nil {
		return nil, missing("random", "query")
	}
	var titles []string
	switch {
	case resp.Query.Random != nil:
		for _, r := range *resp.Query.Random {
			if r.Title != "" {
				titles = append(titles, r.Title)
			}
		}
	case resp.Query.Pages != nil:
		keys := make([]string, 0, len(resp.Query.Pages))
		for k := range resp.Query.Pages {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return pageKeyLess(keys[i], keys[j]) })
		for _, k := range keys {
			if t := resp.Query.Pages[k].Title; t != "" {
				titles = append(titles, t)
			}
		}
	default:
		return nil, missing("random", "query.random or query.pages")
	}
	return titles, nil
}

func pageKeyLess(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA != nil || errB != nil {
		return a < b
	}
	return ai < bi
}

type parseResponse struct {
	Error *apiError `json:"error"`
	Parse *struct {
		Title        string `json:"title"`
		DisplayTitle string `json:"displaytitle"`
		PageID       int64  `json:"pageid"`
		Text         *struct {
			Body *string `json:"*"`
		} `json:"text"`
	} `json:"parse"`
}

func decodeParse(body []byte) (crawler.Article, error) {
	var resp parseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return crawler.Article{}, formatErr("parse", err)
	}
	if resp.Error != nil {
		return crawler.Article{}, apiErr("parse", resp.Error)
	}
	if resp.Parse == nil || resp.Parse.Text == nil || resp.Parse.Text.Body == nil {
		return crawler.Article{}, missing("parse", "parse.text.*")
	}
	return crawler.Article{
		Title:        resp.Parse.Title,
		DisplayTitle: resp.Parse.DisplayTitle,
		PageID:       resp.Parse.PageID,
		HTML:         *resp.Parse.Text.Body,
	}, nil
}

func formatErr(call string, err error) error {
	return fmt.Errorf("%w: decode %s response: %v", crawler.ErrUpstreamFormat, call, err)
}

func apiErr(call string, e *apiError) error {
	return fmt.Errorf("%w: %s call returned api error %s: %s", crawler.ErrUpstreamFormat, call, e.Code, e.Info)
}

func missing(call, field string) error {
	return fmt.Errorf("%w: %s response has no %s", crawler.ErrUpstreamFormat, call, field)
}
