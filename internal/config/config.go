// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig points at the rate-limit counter store. An empty address
// disables the backing store; the limiter then allows everything.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig bounds plan submissions per identifier.
type RateLimitConfig struct {
	Max           int64 `mapstructure:"max"`
	WindowSeconds int   `mapstructure:"window_seconds"`
}

// LLMConfig selects the generative model backend.
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// ScreenshotConfig configures the headless capture subsystem.
type ScreenshotConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	ViewportWidth  int  `mapstructure:"viewport_width"`
	ViewportHeight int  `mapstructure:"viewport_height"`
	NavTimeoutSec  int  `mapstructure:"nav_timeout_seconds"`
	MaxParallel    int  `mapstructure:"max_parallel"`
}

// CrawlerConfig bounds the website crawl.
type CrawlerConfig struct {
	MaxPages       int    `mapstructure:"max_pages"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	PageTimeoutSec int    `mapstructure:"page_timeout_seconds"`
	MinTextLen     int    `mapstructure:"min_text_len"`
	MaxTextLen     int    `mapstructure:"max_text_len"`
	UserAgent      string `mapstructure:"user_agent"`
}

// PipelineConfig tunes the background worker pool and stage budgets.
type PipelineConfig struct {
	Workers          int `mapstructure:"workers"`
	QueueDepth       int `mapstructure:"queue_depth"`
	EnrichTimeoutSec int `mapstructure:"enrich_timeout_seconds"`
	ModelTimeoutSec  int `mapstructure:"model_timeout_seconds"`
	DBTimeoutSec     int `mapstructure:"db_timeout_seconds"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PLANFORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("db.max_conns", 5)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("rate_limit.max", 100)
	v.SetDefault("rate_limit.window_seconds", 3600)
	v.SetDefault("llm.model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("screenshot.enabled", true)
	v.SetDefault("screenshot.viewport_width", 1366)
	v.SetDefault("screenshot.viewport_height", 768)
	v.SetDefault("screenshot.nav_timeout_seconds", 25)
	v.SetDefault("screenshot.max_parallel", 2)
	v.SetDefault("crawler.max_pages", 6)
	v.SetDefault("crawler.max_concurrency", 3)
	v.SetDefault("crawler.page_timeout_seconds", 15)
	v.SetDefault("crawler.min_text_len", 100)
	v.SetDefault("crawler.max_text_len", 5000)
	v.SetDefault("crawler.user_agent", "planform-bot/1.0")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queue_depth", 64)
	v.SetDefault("pipeline.enrich_timeout_seconds", 90)
	v.SetDefault("pipeline.model_timeout_seconds", 120)
	v.SetDefault("pipeline.db_timeout_seconds", 10)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if c.RateLimit.Max <= 0 {
		return fmt.Errorf("rate_limit.max must be > 0")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be > 0")
	}
	return nil
}

// RateWindow converts the configured window into a duration.
func (c Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}
