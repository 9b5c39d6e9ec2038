package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/planform/planform/internal/plan"
)

func page(body string) string {
	return fmt.Sprintf("<html><head><style>body{color:red}</style></head><body>%s</body></html>", body)
}

func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page(`
			<h1>Acme Anvils</h1>
			<p>We forge the finest anvils in the industry, trusted by workshops worldwide.</p>
			<a href="/about">About us</a>
			<a href="/blog/latest">Blog</a>
			<a href="/thin">Thin</a>
			<script>console.log("invisible")</script>
		`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, page("<p>Founded in 1952, Acme employs twelve blacksmiths and ships to forty countries.</p>"))
	})
	mux.HandleFunc("/thin", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, page("<p>tiny</p>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlerCollectsLandingAndPriorityPages(t *testing.T) {
	t.Parallel()

	srv := testSite(t)
	crawler := NewCrawler(CrawlerConfig{
		MaxPages:    4,
		MinTextLen:  20,
		MaxTextLen:  5000,
		PageTimeout: 5 * time.Second,
	}, zap.NewNop())

	result := crawler.Crawl(context.Background(), srv.URL)

	require.Contains(t, result, srv.URL)
	require.Contains(t, result[srv.URL], "finest anvils")
	require.NotContains(t, result[srv.URL], "invisible", "script text must be stripped")

	require.Contains(t, result, srv.URL+"/about")
	require.Contains(t, result[srv.URL+"/about"], "Founded in 1952")

	for u := range result {
		require.NotContains(t, u, "/blog", "blacklisted paths must not be fetched")
		require.NotContains(t, u, "/thin", "pages under the substance threshold are dropped")
	}
	require.Len(t, result.Usable(), 2)
}

func TestCrawlerTruncatesLongPages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, page(strings.Repeat("anvil ", 500)))
	}))
	t.Cleanup(srv.Close)

	crawler := NewCrawler(CrawlerConfig{MaxPages: 1, MinTextLen: 10, MaxTextLen: 120}, zap.NewNop())
	result := crawler.Crawl(context.Background(), srv.URL)
	require.Len(t, result[srv.URL], 120)
}

func TestCrawlerDeadSiteYieldsErrorEntry(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	crawler := NewCrawler(CrawlerConfig{MaxPages: 2, PageTimeout: time.Second}, zap.NewNop())
	result := crawler.Crawl(context.Background(), srv.URL)

	require.Len(t, result, 1)
	require.True(t, strings.HasPrefix(result[srv.URL], plan.CrawlErrorPrefix))
	require.Empty(t, result.Usable())
}

func TestCrawlerInvalidURL(t *testing.T) {
	t.Parallel()

	crawler := NewCrawler(CrawlerConfig{}, zap.NewNop())
	result := crawler.Crawl(context.Background(), "not a url")
	require.Len(t, result, 1)
	require.Empty(t, result.Usable())
}
