package enrich

import (
	"net/url"
	"sort"
	"strings"
)

// priorityKeywords rank candidate links; an earlier match wins. Pages like
// /about or /services carry the differentiating company information the
// insight stage feeds on.
var priorityKeywords = []string{
	"about", "team", "company", "services", "products",
	"contact", "careers", "mission", "vision", "values",
}

// linkBlacklist excludes link paths that rarely describe the company itself.
var linkBlacklist = []string{
	"blog", "news", "article", "privacy", "terms", "cookie", "legal",
	"pricing", "login", "signin", "signup", "register", "cart", "checkout",
	"search", "tag", "category", "wp-", ".pdf", ".jpg", ".jpeg", ".png",
	".gif", ".svg", ".zip", "mailto:", "tel:", "javascript:",
}

func blacklisted(link string) bool {
	lower := strings.ToLower(link)
	for _, word := range linkBlacklist {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// priorityOf returns the keyword rank of a link, or len(priorityKeywords)
// when nothing matches.
func priorityOf(link string) int {
	lower := strings.ToLower(link)
	for i, word := range priorityKeywords {
		if strings.Contains(lower, word) {
			return i
		}
	}
	return len(priorityKeywords)
}

// sameDomain reports whether link shares a registrable host with root,
// treating a leading www. as equivalent.
func sameDomain(root *url.URL, link *url.URL) bool {
	if link.Host == "" {
		return true // relative link
	}
	return trimWWW(link.Host) == trimWWW(root.Host)
}

func trimWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// selectLinks resolves, filters, dedups and ranks the outbound links found on
// the landing page, returning at most limit absolute same-domain URLs.
func selectLinks(root *url.URL, hrefs []string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	seen := map[string]struct{}{normalize(root): {}}
	type candidate struct {
		url      string
		priority int
		order    int
	}
	var candidates []candidate
	for i, href := range hrefs {
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || blacklisted(href) {
			continue
		}
		parsed, err := root.Parse(href)
		if err != nil {
			continue
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			continue
		}
		if !sameDomain(root, parsed) {
			continue
		}
		parsed.Fragment = ""
		key := normalize(parsed)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, candidate{
			url:      parsed.String(),
			priority: priorityOf(parsed.Path),
			order:    i,
		})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].priority != candidates[b].priority {
			return candidates[a].priority < candidates[b].priority
		}
		return candidates[a].order < candidates[b].order
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.url)
	}
	return out
}

func normalize(u *url.URL) string {
	cp := *u
	cp.Fragment = ""
	cp.Host = trimWWW(cp.Host)
	cp.Path = strings.TrimSuffix(cp.Path, "/")
	return cp.Host + cp.Path + "?" + cp.RawQuery
}
