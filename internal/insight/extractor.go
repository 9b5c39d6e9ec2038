// Package insight synthesizes a compact company-insight summary from crawled
// page text.
package insight

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/planform/planform/internal/llm"
	"github.com/planform/planform/internal/plan"
)

// NoContentSentinel is returned verbatim when the crawl produced nothing
// usable. The model is never invoked for an empty input.
const NoContentSentinel = "No crawlable website content was available for company insights."

const systemPrompt = "You are a sharp business analyst working for a marketing agency. " +
	"From the website excerpts provided, write a concise free-text synthesis of the company covering: " +
	"positioning, target audience, business model signals, culture signals, growth stage, " +
	"differentiators, and domain expertise. Be specific and grounded in the excerpts; " +
	"do not invent facts."

const discoverabilityNote = "Notably, the site exposes very little crawlable content, " +
	"which points to poor discoverability and weak SEO fundamentals."

// pageCategories bucket crawled URLs for labeling excerpts.
var pageCategories = []struct {
	name     string
	keywords []string
}{
	{"about", []string{"about", "story", "who-we-are", "mission", "vision", "values"}},
	{"team", []string{"team", "people", "founders", "leadership"}},
	{"services", []string{"service", "product", "solution", "offer", "what-we-do"}},
	{"contact", []string{"contact", "location", "reach"}},
	{"careers", []string{"career", "job", "join", "hiring"}},
}

// Config bounds prompt assembly.
type Config struct {
	ExcerptLen    int
	ThinThreshold int
}

func (c Config) withDefaults() Config {
	if c.ExcerptLen <= 0 {
		c.ExcerptLen = 1500
	}
	if c.ThinThreshold <= 0 {
		c.ThinThreshold = 500
	}
	return c
}

// Extractor runs the insight synthesis model call.
type Extractor struct {
	client llm.Completer
	cfg    Config
	logger *zap.Logger
}

// New constructs an Extractor.
func New(client llm.Completer, cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{client: client, cfg: cfg.withDefaults(), logger: logger}
}

// Extract synthesizes insights from the crawl. An empty crawl short-circuits
// to the sentinel. Thin aggregate content is itself a diagnostic signal: the
// returned synthesis always mentions discoverability/SEO in that case.
func (e *Extractor) Extract(ctx context.Context, pages plan.CrawlResult, answers map[string]any) (string, error) {
	usable := pages.Usable()
	if len(usable) == 0 {
		return NoContentSentinel, nil
	}

	excerpts, total := e.buildExcerpts(usable)
	thin := total < e.cfg.ThinThreshold

	user := e.buildUserPrompt(excerpts, answers, thin)
	summary, err := e.client.Complete(ctx, llm.Prompt{System: systemPrompt, User: user})
	if err != nil {
		return "", fmt.Errorf("insight synthesis: %w", err)
	}

	if thin && !mentionsDiscoverability(summary) {
		summary = strings.TrimSpace(summary) + "\n\n" + discoverabilityNote
	}
	return summary, nil
}

// buildExcerpts labels each page by category and truncates its text, in
// stable URL order. Returns the excerpt block and total raw content length.
func (e *Extractor) buildExcerpts(pages plan.CrawlResult) (string, int) {
	urls := make([]string, 0, len(pages))
	total := 0
	for u, text := range pages {
		urls = append(urls, u)
		total += len(text)
	}
	sort.Strings(urls)

	var b strings.Builder
	for _, u := range urls {
		text := pages[u]
		if len(text) > e.cfg.ExcerptLen {
			text = text[:e.cfg.ExcerptLen]
		}
		fmt.Fprintf(&b, "[%s] %s\n%s\n\n", categorize(u), u, text)
	}
	return b.String(), total
}

func (e *Extractor) buildUserPrompt(excerpts string, answers map[string]any, thin bool) string {
	var b strings.Builder
	b.WriteString("Website excerpts, labeled by page category:\n\n")
	b.WriteString(excerpts)
	if len(answers) > 0 {
		b.WriteString("The prospective client also answered a questionnaire:\n")
		keys := make([]string, 0, len(answers))
		for k := range answers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, answers[k])
		}
	}
	if thin {
		b.WriteString("\nThe crawl surfaced very little content overall. Treat that as a finding: " +
			"explicitly call out the site's poor discoverability and SEO as an insight.")
	}
	return b.String()
}

// categorize buckets a URL by path keywords; unmatched pages land in "other".
func categorize(pageURL string) string {
	lower := strings.ToLower(pageURL)
	for _, cat := range pageCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return cat.name
			}
		}
	}
	return "other"
}

func mentionsDiscoverability(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "seo") || strings.Contains(lower, "discoverab")
}
