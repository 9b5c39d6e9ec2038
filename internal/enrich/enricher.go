// Package enrich captures the two website artifacts feeding the plan
// pipeline: a first-fold screenshot and a bounded same-domain crawl.
package enrich

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/planform/planform/internal/plan"
)

// Capturer produces a viewport PNG for a URL.
type Capturer interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// PageCrawler walks a site and returns per-page visible text.
type PageCrawler interface {
	Crawl(ctx context.Context, url string) plan.CrawlResult
}

// Enricher runs screenshot capture and crawling concurrently over the same
// URL. The two operations share no state and together dominate pipeline
// latency, so neither waits on the other.
type Enricher struct {
	capturer Capturer
	crawler  PageCrawler
	logger   *zap.Logger
}

// New constructs an Enricher. Either collaborator may be nil, in which case
// its artifact is simply absent.
func New(capturer Capturer, crawler PageCrawler, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{capturer: capturer, crawler: crawler, logger: logger}
}

// Enrich returns the screenshot and crawl result for url. Each artifact
// degrades independently: a failed capture yields nil bytes, a failed crawl
// yields its error-entry result. Enrich itself never fails.
func (e *Enricher) Enrich(ctx context.Context, url string) ([]byte, plan.CrawlResult) {
	var (
		wg    sync.WaitGroup
		png   []byte
		pages plan.CrawlResult
	)

	if e.capturer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img, err := e.capturer.Capture(ctx, url)
			if err != nil {
				e.logger.Warn("screenshot capture failed", zap.String("url", url), zap.Error(err))
				return
			}
			png = img
		}()
	}

	if e.crawler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pages = e.crawler.Crawl(ctx, url)
		}()
	}

	wg.Wait()
	return png, pages
}
