package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// hideCookieBanners injects a stylesheet hiding any element whose class or id
// mentions "cookie". Heuristic, but it clears the consent overlays that
// otherwise dominate the first fold.
const hideCookieBanners = `(() => {
	const style = document.createElement('style');
	style.textContent = '[class*="cookie"], [id*="cookie"] { display: none !important; }';
	document.head.appendChild(style);
})()`

// ScreenshotConfig controls the headless capture subsystem.
type ScreenshotConfig struct {
	ViewportWidth  int
	ViewportHeight int
	NavTimeout     time.Duration
	MaxParallel    int
	UserAgent      string
}

func (c ScreenshotConfig) withDefaults() ScreenshotConfig {
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1366
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 768
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 25 * time.Second
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 2
	}
	if c.UserAgent == "" {
		c.UserAgent = "planform-bot/1.0"
	}
	return c
}

// Screenshotter captures fixed-viewport page rasters with headless Chrome.
// One browser process is shared; each capture runs in its own tab.
type Screenshotter struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	sem             chan struct{}
	cfg             ScreenshotConfig
	logger          *zap.Logger
}

// NewScreenshotter starts the shared browser.
func NewScreenshotter(cfg ScreenshotConfig, logger *zap.Logger) (*Screenshotter, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Screenshotter{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		sem:             make(chan struct{}, cfg.MaxParallel),
		cfg:             cfg,
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (s *Screenshotter) Close() {
	if s == nil {
		return
	}
	s.browserCancel()
	s.allocatorCancel()
}

// Capture navigates to rawURL, waits for the page to settle, suppresses
// cookie banners and returns a PNG of the viewport.
func (s *Screenshotter) Capture(ctx context.Context, rawURL string) ([]byte, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire capture slot: %w", ctx.Err())
	}

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, s.cfg.NavTimeout)
	defer cancelTask()

	stop := forwardCancel(ctx, cancelTask)
	defer stop()

	var png []byte
	tasks := chromedp.Tasks{
		emulation.SetDeviceMetricsOverride(
			int64(s.cfg.ViewportWidth), int64(s.cfg.ViewportHeight), 1.0, false,
		),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(hideCookieBanners, nil),
		chromedp.CaptureScreenshot(&png),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return nil, fmt.Errorf("capture %s: %w", rawURL, err)
	}
	return png, nil
}

// forwardCancel propagates the caller's cancellation into the chromedp task
// context, which otherwise only observes its own timeout.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
