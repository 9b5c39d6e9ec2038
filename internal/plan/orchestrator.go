package plan

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/planform/planform/internal/metrics"
	"github.com/planform/planform/internal/ratelimit"
)

// ErrRateLimited rejects a submission before any task is created.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrClientNotFound is returned by Store lookups when no client matches.
var ErrClientNotFound = errors.New("client not found")

// OrchestratorConfig tunes the worker pool and per-stage budgets.
type OrchestratorConfig struct {
	Workers       int
	QueueDepth    int
	EnrichTimeout time.Duration
	ModelTimeout  time.Duration
	DBTimeout     time.Duration
	SubmitBlock   time.Duration
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 64
	}
	if c.EnrichTimeout <= 0 {
		c.EnrichTimeout = 90 * time.Second
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = 120 * time.Second
	}
	if c.DBTimeout <= 0 {
		c.DBTimeout = 10 * time.Second
	}
	if c.SubmitBlock <= 0 {
		c.SubmitBlock = 5 * time.Second
	}
	return c
}

type pipelineJob struct {
	taskID string
	req    Request
}

// Orchestrator is the task manager binding the pipeline together: it admits
// submissions, hands them to a background worker pool, and exposes task
// status for polling.
type Orchestrator struct {
	tasks       TaskStore
	store       Store
	limiter     Limiter
	enricher    Enricher
	analyzer    Analyzer
	insights    InsightExtractor
	recommender Recommender
	ids         IDGenerator
	queue       chan pipelineJob
	cfg         OrchestratorConfig
	logger      *zap.Logger
}

// NewOrchestrator wires the pipeline. Enricher and analyzer may be nil when
// website enrichment is disabled; everything else is required.
func NewOrchestrator(
	tasks TaskStore,
	store Store,
	limiter Limiter,
	enricher Enricher,
	analyzer Analyzer,
	insights InsightExtractor,
	recommender Recommender,
	ids IDGenerator,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		tasks:       tasks,
		store:       store,
		limiter:     limiter,
		enricher:    enricher,
		analyzer:    analyzer,
		insights:    insights,
		recommender: recommender,
		ids:         ids,
		queue:       make(chan pipelineJob, cfg.QueueDepth),
		cfg:         cfg,
		logger:      logger,
	}
}

// Run blocks, executing queued pipelines on cfg.Workers goroutines until the
// context finishes.
func (o *Orchestrator) Run(ctx context.Context) {
	done := make(chan struct{})
	for i := 0; i < o.cfg.Workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-o.queue:
					o.execute(ctx, job)
				}
			}
		}()
	}
	for i := 0; i < o.cfg.Workers; i++ {
		<-done
	}
}

// Submit admits a plan request and enqueues the background pipeline,
// returning the new task id immediately. The caller is expected to poll:
// full pipeline latency routinely exceeds a synchronous response window.
// Identity for admission is the request's API key, falling back to the
// caller's network origin.
func (o *Orchestrator) Submit(ctx context.Context, req Request, remoteAddr string) (string, ratelimit.Decision, error) {
	identity := req.APIKey
	if identity == "" {
		identity = remoteAddr
	}
	decision := o.limiter.Check(ctx, identity)
	if !decision.Allowed {
		metrics.ObserveRateLimitRejection()
		return "", decision, ErrRateLimited
	}

	taskID, err := o.ids.NewID()
	if err != nil {
		return "", decision, fmt.Errorf("generate task id: %w", err)
	}
	if err := o.tasks.Create(ctx, Task{ID: taskID, Status: TaskPending}); err != nil {
		return "", decision, fmt.Errorf("register task: %w", err)
	}

	select {
	case o.queue <- pipelineJob{taskID: taskID, req: req}:
	case <-ctx.Done():
		o.failTask(taskID, "submission canceled before execution")
		return "", decision, ctx.Err()
	case <-time.After(o.cfg.SubmitBlock):
		o.failTask(taskID, "worker queue saturated")
		return "", decision, errors.New("worker queue saturated")
	}
	return taskID, decision, nil
}

// Status returns the task record for polling.
func (o *Orchestrator) Status(ctx context.Context, taskID string) (Task, error) {
	return o.tasks.Get(ctx, taskID)
}

// execute drives one pipeline run to a terminal state. Nothing may escape:
// a panic or error anywhere becomes a failed task, never a task stuck in
// processing.
func (o *Orchestrator) execute(ctx context.Context, job pipelineJob) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("pipeline panic", zap.String("task_id", job.taskID), zap.Any("panic", rec))
			o.failTask(job.taskID, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	if err := o.tasks.MarkProcessing(ctx, job.taskID); err != nil {
		o.logger.Error("mark processing failed", zap.String("task_id", job.taskID), zap.Error(err))
		return
	}

	payload, err := o.runPipeline(ctx, job)
	if err != nil {
		o.logger.Warn("pipeline failed", zap.String("task_id", job.taskID), zap.Error(err))
		o.failTask(job.taskID, err.Error())
		return
	}
	if err := o.tasks.Complete(ctx, job.taskID, payload); err != nil {
		o.logger.Error("complete task failed", zap.String("task_id", job.taskID), zap.Error(err))
		return
	}
	metrics.ObserveTask(string(TaskCompleted))
}

func (o *Orchestrator) failTask(taskID, reason string) {
	// Background context: the terminal write must land even when the run
	// context is already canceled.
	if err := o.tasks.Fail(context.Background(), taskID, reason); err != nil {
		o.logger.Error("fail task write failed", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	metrics.ObserveTask(string(TaskFailed))
}

func (o *Orchestrator) runPipeline(ctx context.Context, job pipelineJob) (*Payload, error) {
	agency, err := o.lookupAgency(ctx, job.req.APIKey)
	if err != nil {
		return nil, err
	}

	answers := job.req.Answers()
	analysis, insightText, screenshot := o.enrichWebsite(ctx, job, answers)

	recommendCtx, cancel := context.WithTimeout(ctx, o.cfg.ModelTimeout)
	defer cancel()
	start := time.Now()
	set, err := o.recommender.Recommend(recommendCtx, agency, answers, analysis, insightText)
	metrics.ObserveStage("recommend", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("recommendation engine: %w", err)
	}

	client, err := o.resolveClient(ctx, agency, job.req)
	if err != nil {
		return nil, err
	}

	payload, err := assemblePayload(set, agency.Services, analysis, screenshot)
	if err != nil {
		return nil, err
	}
	payload.ClientID = client.ID

	dbCtx, cancelDB := context.WithTimeout(ctx, o.cfg.DBTimeout)
	defer cancelDB()
	planID, err := o.store.CreatePlan(dbCtx, agency.ID, client.ID, *payload)
	if err != nil {
		return nil, fmt.Errorf("persist plan: %w", err)
	}
	payload.PlanID = planID
	return payload, nil
}

func (o *Orchestrator) lookupAgency(ctx context.Context, apiKey string) (Agency, error) {
	dbCtx, cancel := context.WithTimeout(ctx, o.cfg.DBTimeout)
	defer cancel()
	agency, err := o.store.AgencyByAPIKey(dbCtx, apiKey)
	if err != nil {
		if errors.Is(err, ErrAgencyNotFound) {
			return Agency{}, ErrAgencyNotFound
		}
		return Agency{}, fmt.Errorf("agency lookup: %w", err)
	}
	return agency, nil
}

// enrichWebsite runs screenshot+crawl, then screenshot analysis and insight
// extraction independently of each other. Every artifact degrades to absent
// on failure; enrichment never fails the task.
func (o *Orchestrator) enrichWebsite(ctx context.Context, job pipelineJob, answers map[string]any) (*WebsiteAnalysis, string, []byte) {
	if job.req.WebsiteURL == "" || o.enricher == nil {
		return nil, "", nil
	}

	enrichCtx, cancel := context.WithTimeout(ctx, o.cfg.EnrichTimeout)
	defer cancel()
	start := time.Now()
	screenshot, pages := o.enricher.Enrich(enrichCtx, job.req.WebsiteURL)
	metrics.ObserveStage("enrich", time.Since(start))

	var (
		analysis    *WebsiteAnalysis
		insightText string
	)
	analysisDone := make(chan struct{})
	go func() {
		defer close(analysisDone)
		if len(screenshot) == 0 || o.analyzer == nil {
			return
		}
		modelCtx, cancelModel := context.WithTimeout(ctx, o.cfg.ModelTimeout)
		defer cancelModel()
		stageStart := time.Now()
		result, err := o.analyzer.AnalyzeWebsite(modelCtx, screenshot, job.req.WebsiteURL, answers)
		metrics.ObserveStage("analyze", time.Since(stageStart))
		if err != nil {
			o.logger.Warn("website analysis failed",
				zap.String("task_id", job.taskID), zap.Error(err))
			return
		}
		analysis = result
	}()

	if o.insights != nil && len(pages.Usable()) > 0 {
		modelCtx, cancelModel := context.WithTimeout(ctx, o.cfg.ModelTimeout)
		stageStart := time.Now()
		text, err := o.insights.Extract(modelCtx, pages, answers)
		cancelModel()
		metrics.ObserveStage("insights", time.Since(stageStart))
		if err != nil {
			o.logger.Warn("insight extraction failed",
				zap.String("task_id", job.taskID), zap.Error(err))
		} else {
			insightText = text
		}
	}
	<-analysisDone

	return analysis, insightText, screenshot
}

func (o *Orchestrator) resolveClient(ctx context.Context, agency Agency, req Request) (Client, error) {
	dbCtx, cancel := context.WithTimeout(ctx, o.cfg.DBTimeout)
	defer cancel()

	client, err := o.store.ClientByEmail(dbCtx, agency.ID, req.Email)
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, ErrClientNotFound) {
		return Client{}, fmt.Errorf("client lookup: %w", err)
	}

	created, err := o.store.CreateClient(dbCtx, Client{
		Email:      req.Email,
		Name:       req.Name,
		WebsiteURL: req.WebsiteURL,
		AgencyID:   agency.ID,
	})
	if err != nil {
		return Client{}, fmt.Errorf("create client: %w", err)
	}
	return created, nil
}

// assemblePayload splices full service details into each recommendation.
// Services resolve by stable serviceId when the model supplied one; the
// positional index is the fallback and is validated, never silently
// truncated: an out-of-range index is a contract violation by the
// recommendation engine.
func assemblePayload(
	set RecommendationSet,
	catalog []Service,
	analysis *WebsiteAnalysis,
	screenshot []byte,
) (*Payload, error) {
	byID := make(map[string]Service, len(catalog))
	for _, svc := range catalog {
		if svc.ServiceID != "" {
			byID[svc.ServiceID] = svc
		}
	}

	display := make([]DisplayRecommendation, 0, len(set.Recommendations))
	for i, rec := range set.Recommendations {
		svc, ok := byID[rec.ServiceID]
		if !ok {
			if rec.ServiceIndex < 0 || rec.ServiceIndex >= len(catalog) {
				return nil, fmt.Errorf(
					"recommendation %d references service index %d outside catalog of %d",
					i, rec.ServiceIndex, len(catalog),
				)
			}
			svc = catalog[rec.ServiceIndex]
		}
		display = append(display, DisplayRecommendation{
			ServiceID:   svc.ServiceID,
			ServiceName: svc.Name,
			Description: svc.Description,
			Reason:      rec.Reason,
		})
	}

	payload := &Payload{
		Recommendations:  display,
		ExecutiveSummary: set.ExecutiveSummary,
		PlanTitle:        set.PlanTitle,
		SubTitle:         set.SubTitle,
		CallToAction:     set.CallToAction,
		WebsiteAnalysis:  analysis,
	}
	if len(screenshot) > 0 {
		payload.ScreenshotBase64 = base64.StdEncoding.EncodeToString(screenshot)
	}
	return payload, nil
}
