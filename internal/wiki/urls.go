package wiki

import (
	"net/url"
	"strings"
)

const articlePathMarker = "/wiki/"

// quote percent-encodes everything except unreserved characters and '/', so
// titles keep the same URL across runs.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || c == '/' {
			b.WriteByte(c)
			continue
		}
		const hex = "0123456789ABCDEF"
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// TitleFromURL recovers a title from the path after the last "/wiki/". It returns ""
// when the URL has no article path.
func TitleFromURL(raw string) string {
	idx := strings.LastIndex(raw, articlePathMarker)
	if idx < 0 {
		return ""
	}
	suffix := raw[idx+len(articlePathMarker):]
	if cut := strings.IndexAny(suffix, "?#"); cut >= 0 {
		suffix = suffix[:cut]
	}
	title, err := url.PathUnescape(suffix)
	if err != nil {
		return suffix
	}
	return title
}
