package wiki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/wikicrawler/internal/fetcher/colly"
)

func TestFetchArticleOverHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "parse" || q.Get("page") != "Kedi" || q.Get("prop") != "text|displaytitle" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"parse":{"title":"Kedi","pageid":9,"displaytitle":"Kedi","text":{"*":"<p>Kediler evcil hayvanlardır.</p>"}}}`))
	}))
	defer srv.Close()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: "wiki-test",
		Timeout:   time.Second,
		Policy:    crawler.NewFixedRetryPolicy(1, 0),
	})
	c := NewClient(fetcher, nil, Config{BaseURL: srv.URL + "/w/api.php", ArticleBaseURL: "https://tr.wikipedia.org/wiki/"}, nil)

	article, err := c.FetchArticle(context.Background(), "Kedi")
	require.NoError(t, err)
	require.EqualValues(t, 9, article.PageID)
	require.Equal(t, "<p>Kediler evcil hayvanlardır.</p>", article.HTML)
}

func TestFetchArticleMissingPage(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{bodies: []string{`{"error":{"code":"missingtitle","info":"nope"}}`}}
	_, err := newTestClient(f, nil).FetchArticle(context.Background(), "Yok")
	require.ErrorIs(t, err, crawler.ErrUpstreamFormat)
}

func TestArticleURLAndTitleRoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestClient(&fakeFetcher{}, nil)
	tests := []struct {
		title string
		url   string
	}{
		{"Ankara", "https://tr.wikipedia.org/wiki/Ankara"},
		{"Mustafa Kemal Atatürk", "https://tr.wikipedia.org/wiki/Mustafa%20Kemal%20Atat%C3%BCrk"},
		{"AC/DC", "https://tr.wikipedia.org/wiki/AC/DC"},
		{"C++ (programlama dili)", "https://tr.wikipedia.org/wiki/C%2B%2B%20%28programlama%20dili%29"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.url, c.ArticleURL(tt.title))
		require.Equal(t, tt.title, TitleFromURL(tt.url))
	}
	require.Empty(t, TitleFromURL("https://tr.wikipedia.org/w/index.php"))
	require.Equal(t, "Page", TitleFromURL("https://x.org/wiki/Page?action=edit#top"))
}
