package enrich

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/planform/planform/internal/plan"
)

// CrawlerConfig bounds the crawl in pages, bytes and time.
type CrawlerConfig struct {
	MaxPages       int
	MaxConcurrency int
	PageTimeout    time.Duration
	MinTextLen     int
	MaxTextLen     int
	UserAgent      string
}

func (c CrawlerConfig) withDefaults() CrawlerConfig {
	if c.MaxPages <= 0 {
		c.MaxPages = 6
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 3
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = 15 * time.Second
	}
	if c.MinTextLen <= 0 {
		c.MinTextLen = 100
	}
	if c.MaxTextLen <= 0 {
		c.MaxTextLen = 5000
	}
	if c.UserAgent == "" {
		c.UserAgent = "planform-bot/1.0"
	}
	return c
}

// Crawler walks a bounded set of same-domain pages via Colly and extracts
// their visible text.
type Crawler struct {
	cfg    CrawlerConfig
	logger *zap.Logger
}

// NewCrawler constructs a Crawler.
func NewCrawler(cfg CrawlerConfig, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{cfg: cfg.withDefaults(), logger: logger}
}

// Crawl fetches the landing page, ranks its outbound same-domain links, and
// fetches up to MaxPages-1 of them with bounded concurrency. A landing-page
// failure yields a single error entry instead of propagating: downstream
// stages treat it as no usable content.
func (c *Crawler) Crawl(ctx context.Context, rawURL string) plan.CrawlResult {
	result := plan.CrawlResult{}

	root, err := url.Parse(rawURL)
	if err != nil || root.Host == "" {
		result[rawURL] = fmt.Sprintf("%s invalid url", plan.CrawlErrorPrefix)
		return result
	}

	text, hrefs, err := c.fetchPage(ctx, rawURL)
	if err != nil {
		c.logger.Warn("landing page fetch failed", zap.String("url", rawURL), zap.Error(err))
		result[rawURL] = fmt.Sprintf("%s failed to load website: %v", plan.CrawlErrorPrefix, err)
		return result
	}
	if len(text) > c.cfg.MinTextLen {
		result[rawURL] = truncate(text, c.cfg.MaxTextLen)
	}

	links := selectLinks(root, hrefs, c.cfg.MaxPages-1)
	if len(links) == 0 {
		return result
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, c.cfg.MaxConcurrency)
	)
	for _, link := range links {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(link string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pageText, _, err := c.fetchPage(ctx, link)
			if err != nil {
				c.logger.Debug("page fetch failed", zap.String("url", link), zap.Error(err))
				return
			}
			if len(pageText) <= c.cfg.MinTextLen {
				return
			}
			mu.Lock()
			result[link] = truncate(pageText, c.cfg.MaxTextLen)
			mu.Unlock()
		}(link)
	}
	wg.Wait()

	return result
}

// fetchPage retrieves one page and returns its visible text and raw hrefs.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (string, []string, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	collector := colly.NewCollector(colly.UserAgent(c.cfg.UserAgent))
	collector.SetRequestTimeout(c.cfg.PageTimeout)

	var (
		text  string
		hrefs []string
		pgErr error
	)
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		hrefs = append(hrefs, e.Attr("href"))
	})
	collector.OnHTML("body", func(e *colly.HTMLElement) {
		sel := e.DOM.Clone()
		sel.Find("script, style, noscript, svg, iframe").Remove()
		text = collapseWhitespace(sel.Text())
	})
	collector.OnError(func(_ *colly.Response, err error) {
		pgErr = err
	})

	if err := collector.Visit(pageURL); err != nil {
		return "", nil, fmt.Errorf("visit %s: %w", pageURL, err)
	}
	collector.Wait()

	if pgErr != nil {
		return "", nil, fmt.Errorf("fetch %s: %w", pageURL, pgErr)
	}
	return text, hrefs, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
