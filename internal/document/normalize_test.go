package document

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURLTriplet(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://tr.wikipedia.org/wiki/test", NormalizeURL("https://tr.wikipedia.org/wiki/Test#section"))
	require.Equal(t, "https://tr.wikipedia.org/wiki/page", NormalizeURL("HTTPS://TR.WIKIPEDIA.ORG/WIKI/PAGE"))
	require.Equal(t, "https://tr.wikipedia.org/wiki/test", NormalizeURL("https://tr.wikipedia.org/wiki/Test?query=1"))
}

func TestNormalizeURLVariantsShareKey(t *testing.T) {
	t.Parallel()

	want := NormalizeURL("https://x.org/wiki/page")
	for _, raw := range []string{
		"HTTPS://X.org/Wiki/Page?x=1#s",
		"https://x.org/wiki/page#top",
		"  https://X.ORG/wiki/PAGE  ",
	} {
		require.Equal(t, want, NormalizeURL(raw), raw)
	}
}

func TestNormalizeURLCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://tr.wikipedia.org/wiki/Mustafa%20Kemal%20Atat%C3%BCrk", "https://tr.wikipedia.org/wiki/mustafa%20kemal%20atat%c3%bcrk"},
		{"https://tr.wikipedia.org/wiki/AC/DC", "https://tr.wikipedia.org/wiki/ac/dc"},
		{"http://Example.com:8080/A", "http://example.com:8080/a"},
		{"https://x.org", "https://x.org"},
		{"/wiki/Relative?x=1", "/wiki/relative"},
		{"mailto:Someone@Example.com", "mailto:someone@example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, NormalizeURL(tt.in), tt.in)
	}
}

func FuzzNormalizeURLIdempotent(f *testing.F) {
	for _, seed := range []string{
		"https://tr.wikipedia.org/wiki/Test#section",
		"HTTPS://TR.WIKIPEDIA.ORG/WIKI/PAGE",
		"https://tr.wikipedia.org/wiki/Test?query=1",
		"https://tr.wikipedia.org/wiki/%C4%B0stanbul",
		"https://x.org/a b",
		"//x.org/path",
		"not a url",
		"",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		once := NormalizeURL(raw)
		if twice := NormalizeURL(once); twice != once {
			t.Fatalf("NormalizeURL not idempotent for %q: %q -> %q", raw, once, twice)
		}
	})
}
