// Package main wires together the plan-generation service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/planform/planform/internal/api"
	"github.com/planform/planform/internal/config"
	"github.com/planform/planform/internal/enrich"
	"github.com/planform/planform/internal/id/uuid"
	"github.com/planform/planform/internal/insight"
	"github.com/planform/planform/internal/llm"
	"github.com/planform/planform/internal/logging"
	"github.com/planform/planform/internal/metrics"
	"github.com/planform/planform/internal/plan"
	"github.com/planform/planform/internal/ratelimit"
	"github.com/planform/planform/internal/recommend"
	"github.com/planform/planform/internal/store/postgres"
	taskmemory "github.com/planform/planform/internal/task/memory"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	store, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer store.Close()

	var counter ratelimit.Counter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisCounter := ratelimit.NewRedisCounter(rdb)
		if err := redisCounter.Ping(ctx); err != nil {
			// The limiter fails open on store errors anyway; a dead Redis at
			// startup just means unlimited admission until it comes back.
			logger.Warn("redis unreachable, rate limiting degrades to unlimited", zap.Error(err))
		}
		counter = redisCounter
	} else {
		logger.Warn("redis.addr not set, rate limiting disabled")
	}
	limiter := ratelimit.New(counter, ratelimit.Config{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateWindow(),
	}, logger)

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		logger.Fatal("llm client init failed", zap.Error(err))
	}

	crawler := enrich.NewCrawler(enrich.CrawlerConfig{
		MaxPages:       cfg.Crawler.MaxPages,
		MaxConcurrency: cfg.Crawler.MaxConcurrency,
		PageTimeout:    time.Duration(cfg.Crawler.PageTimeoutSec) * time.Second,
		MinTextLen:     cfg.Crawler.MinTextLen,
		MaxTextLen:     cfg.Crawler.MaxTextLen,
		UserAgent:      cfg.Crawler.UserAgent,
	}, logger)

	var capturer enrich.Capturer
	var analyzer plan.Analyzer
	if cfg.Screenshot.Enabled {
		shooter, err := enrich.NewScreenshotter(enrich.ScreenshotConfig{
			ViewportWidth:  cfg.Screenshot.ViewportWidth,
			ViewportHeight: cfg.Screenshot.ViewportHeight,
			NavTimeout:     time.Duration(cfg.Screenshot.NavTimeoutSec) * time.Second,
			MaxParallel:    cfg.Screenshot.MaxParallel,
			UserAgent:      cfg.Crawler.UserAgent,
		}, logger)
		if err != nil {
			logger.Warn("screenshotter init failed, website analysis disabled", zap.Error(err))
		} else {
			defer shooter.Close()
			capturer = shooter
			analyzer = llm.NewWebsiteAnalyzer(llmClient)
		}
	}

	orchestrator := plan.NewOrchestrator(
		taskmemory.NewStore(),
		store,
		limiter,
		enrich.New(capturer, crawler, logger),
		analyzer,
		insight.New(llmClient, insight.Config{}, logger),
		recommend.New(llmClient),
		uuid.NewGenerator(),
		plan.OrchestratorConfig{
			Workers:       cfg.Pipeline.Workers,
			QueueDepth:    cfg.Pipeline.QueueDepth,
			EnrichTimeout: time.Duration(cfg.Pipeline.EnrichTimeoutSec) * time.Second,
			ModelTimeout:  time.Duration(cfg.Pipeline.ModelTimeoutSec) * time.Second,
			DBTimeout:     time.Duration(cfg.Pipeline.DBTimeoutSec) * time.Second,
		},
		logger,
	)
	go orchestrator.Run(ctx)

	server := api.NewServer(orchestrator, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}
