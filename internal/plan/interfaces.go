package plan

import (
	"context"
	"errors"
	"time"

	"github.com/planform/planform/internal/ratelimit"
)

// Sentinel errors shared across the orchestration core and its collaborators.
var (
	// ErrTaskNotFound is returned for status lookups of unknown task ids.
	ErrTaskNotFound = errors.New("task not found")
	// ErrAgencyNotFound indicates no agency matches the submitted API key.
	ErrAgencyNotFound = errors.New("agency not found")
	// ErrTaskTerminal rejects status writes to a completed or failed task.
	ErrTaskTerminal = errors.New("task already in terminal state")
)

// TaskStore is the process-wide task registry: one writer per task id, many
// concurrent readers. Implementations must serialize structural mutation.
type TaskStore interface {
	Create(ctx context.Context, task Task) error
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, result *Payload) error
	Fail(ctx context.Context, id string, reason string) error
	Get(ctx context.Context, id string) (Task, error)
}

// Store is the persistence gateway for agencies, clients and plans.
type Store interface {
	AgencyByAPIKey(ctx context.Context, apiKey string) (Agency, error)
	ClientByEmail(ctx context.Context, agencyID int64, email string) (Client, error)
	CreateClient(ctx context.Context, client Client) (Client, error)
	CreatePlan(ctx context.Context, agencyID int64, clientID int64, payload Payload) (int64, error)
}

// Enricher captures a screenshot and crawls a bounded set of pages for a URL.
// Both artifacts are independent; either may come back absent.
type Enricher interface {
	Enrich(ctx context.Context, url string) (screenshotPNG []byte, pages CrawlResult)
}

// Analyzer turns a screenshot into a structured website critique.
type Analyzer interface {
	AnalyzeWebsite(ctx context.Context, screenshotPNG []byte, url string, answers map[string]any) (*WebsiteAnalysis, error)
}

// InsightExtractor synthesizes company insights from crawled page text.
type InsightExtractor interface {
	Extract(ctx context.Context, pages CrawlResult, answers map[string]any) (string, error)
}

// Recommender asks the generative backend for a recommendation set. The
// analysis and insights arguments may be nil/empty.
type Recommender interface {
	Recommend(ctx context.Context, agency Agency, answers map[string]any, analysis *WebsiteAnalysis, insights string) (RecommendationSet, error)
}

// Limiter performs admission control for plan submissions.
type Limiter interface {
	Check(ctx context.Context, identifier string) ratelimit.Decision
}

// IDGenerator mints opaque task identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}
