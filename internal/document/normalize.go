package document

import (
	"net/url"
	"strings"
)

// NormalizeURL reduces a URL to its lower-cased scheme, host and path. Query strings and
// fragments are dropped, so variants of the same page share one key. Input that does not
// parse as an absolute URL is lower-cased with query and fragment stripped.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Opaque != "" || (u.Scheme == "" && u.Host == "") {
		return strings.ToLower(stripQueryFragment(trimmed))
	}
	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString(":")
	}
	b.WriteString("//")
	b.WriteString(u.Host)
	b.WriteString(u.EscapedPath())
	return strings.ToLower(b.String())
}

func stripQueryFragment(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}
