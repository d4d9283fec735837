package wiki

import (
	"net/url"
	"strconv"
)

// Per-call caps imposed by the MediaWiki API for non-bot clients.
const (
	maxCategoryLimit  = 500
	maxRandomList     = 10
	maxRandomGenerate = 500
)

func (c *Client) categoryURL(category string, limit int, cont string) string {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("list", "categorymembers")
	q.Set("cmtitle", category)
	q.Set("cmlimit", strconv.Itoa(clamp(limit, maxCategoryLimit)))
	q.Set("cmnamespace", "0")
	if cont != "" {
		q.Set("cmcontinue", cont)
	}
	return c.apiURL(q)
}

func (c *Client) randomListURL(n int) string {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("list", "random")
	q.Set("rnnamespace", "0")
	q.Set("rnlimit", strconv.Itoa(clamp(n, maxRandomList)))
	return c.apiURL(q)
}

func (c *Client) randomGeneratorURL(n int) string {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("generator", "random")
	q.Set("grnnamespace", "0")
	q.Set("grnlimit", strconv.Itoa(clamp(n, maxRandomGenerate)))
	q.Set("prop", "info")
	return c.apiURL(q)
}

func (c *Client) parseURL(title string) string {
	q := url.Values{}
	q.Set("action", "parse")
	q.Set("format", "json")
	q.Set("page", title)
	q.Set("prop", "text|displaytitle")
	q.Set("disabletoc", "1")
	return c.apiURL(q)
}

func (c *Client) apiURL(q url.Values) string {
	return c.baseURL + "?" + q.Encode()
}

func clamp(n, hi int) int {
	if n < 1 {
		return 1
	}
	if n > hi {
		return hi
	}
	return n
}
