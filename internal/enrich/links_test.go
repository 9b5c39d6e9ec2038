package enrich

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestSelectLinksRanksCompanyPagesFirst(t *testing.T) {
	t.Parallel()

	root := mustParse(t, "https://acme.example/")
	hrefs := []string{
		"/gallery",
		"/contact",
		"/about",
		"/random-page",
		"/services",
	}
	links := selectLinks(root, hrefs, 3)
	require.Equal(t, []string{
		"https://acme.example/about",
		"https://acme.example/services",
		"https://acme.example/contact",
	}, links)
}

func TestSelectLinksFiltersForeignAndBlacklisted(t *testing.T) {
	t.Parallel()

	root := mustParse(t, "https://acme.example/")
	hrefs := []string{
		"https://other.example/about",
		"/blog/post-1",
		"/privacy",
		"/assets/brochure.pdf",
		"mailto:hello@acme.example",
		"javascript:void(0)",
		"#top",
		"/team",
	}
	links := selectLinks(root, hrefs, 10)
	require.Equal(t, []string{"https://acme.example/team"}, links)
}

func TestSelectLinksDedupsAndSkipsRoot(t *testing.T) {
	t.Parallel()

	root := mustParse(t, "https://acme.example/")
	hrefs := []string{
		"/",
		"https://acme.example",
		"/about",
		"/about/",
		"https://www.acme.example/about",
		"/about#history",
	}
	links := selectLinks(root, hrefs, 10)
	require.Len(t, links, 1)
	require.Contains(t, links[0], "/about")
}

func TestSelectLinksTreatsWWWAsSameDomain(t *testing.T) {
	t.Parallel()

	root := mustParse(t, "https://www.acme.example/")
	links := selectLinks(root, []string{"https://acme.example/company"}, 10)
	require.Equal(t, []string{"https://acme.example/company"}, links)
}

func TestSelectLinksHonorsLimit(t *testing.T) {
	t.Parallel()

	root := mustParse(t, "https://acme.example/")
	hrefs := []string{"/a", "/b", "/c", "/d", "/e"}
	require.Len(t, selectLinks(root, hrefs, 2), 2)
	require.Nil(t, selectLinks(root, hrefs, 0))
}

func TestBlacklistedMatchesSubstrings(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"/wp-content/upload": true,
		"/Checkout":          true,
		"/signup?ref=nav":    true,
		"/our-company":       false,
		"/services":          false,
	}
	for link, want := range cases {
		require.Equal(t, want, blacklisted(link), "link %q", link)
	}
}

func TestTruncateAndCollapseWhitespace(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abc", truncate("abcdef", 3))
	require.Equal(t, "abc", truncate("abc", 10))
	require.Equal(t, "one two three", collapseWhitespace("  one\n\ttwo   three\n"))
}
