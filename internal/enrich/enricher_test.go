package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/planform/planform/internal/plan"
)

type stubCapturer struct {
	png   []byte
	err   error
	delay time.Duration
}

func (s *stubCapturer) Capture(context.Context, string) ([]byte, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.png, s.err
}

type stubPageCrawler struct {
	pages plan.CrawlResult
	delay time.Duration
}

func (s *stubPageCrawler) Crawl(context.Context, string) plan.CrawlResult {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.pages
}

func TestEnricherReturnsBothArtifacts(t *testing.T) {
	t.Parallel()

	e := New(
		&stubCapturer{png: []byte{1, 2, 3}},
		&stubPageCrawler{pages: plan.CrawlResult{"https://a.example": "text"}},
		zap.NewNop(),
	)
	png, pages := e.Enrich(context.Background(), "https://a.example")
	require.Equal(t, []byte{1, 2, 3}, png)
	require.Len(t, pages, 1)
}

func TestEnricherCaptureFailureDegrades(t *testing.T) {
	t.Parallel()

	e := New(
		&stubCapturer{err: errors.New("browser gone")},
		&stubPageCrawler{pages: plan.CrawlResult{"https://a.example": "text"}},
		zap.NewNop(),
	)
	png, pages := e.Enrich(context.Background(), "https://a.example")
	require.Nil(t, png)
	require.Len(t, pages, 1)
}

func TestEnricherNilCollaborators(t *testing.T) {
	t.Parallel()

	e := New(nil, nil, zap.NewNop())
	png, pages := e.Enrich(context.Background(), "https://a.example")
	require.Nil(t, png)
	require.Nil(t, pages)
}

func TestEnricherRunsConcurrently(t *testing.T) {
	t.Parallel()

	const delay = 150 * time.Millisecond
	e := New(
		&stubCapturer{png: []byte{1}, delay: delay},
		&stubPageCrawler{pages: plan.CrawlResult{}, delay: delay},
		zap.NewNop(),
	)
	start := time.Now()
	e.Enrich(context.Background(), "https://a.example")
	require.Less(t, time.Since(start), 2*delay, "capture and crawl must overlap")
}
