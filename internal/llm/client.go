// Package llm wraps the generative-model backend behind small interfaces so
// pipeline stages stay testable with fakes.
package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/agents"
	"github.com/aktagon/llmkit/anthropic/types"
)

// Prompt is one structured model request. Schema, when set, constrains the
// output to a JSON document matching it.
type Prompt struct {
	System string
	User   string
	Schema string
}

// Completer issues a text-only structured prompt.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Config holds model selection and request settings.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	return c
}

// Client talks to the Anthropic API via llmkit.
type Client struct {
	agent *agents.ChatAgent
	cfg   Config
}

// NewClient builds a Client. The API key is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	agent, err := agents.New(cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("creating chat agent: %w", err)
	}
	return &Client{agent: agent, cfg: cfg.withDefaults()}, nil
}

// Complete sends a schema-constrained chat request and returns the raw model
// text.
func (c *Client) Complete(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resp, err := c.agent.Chat(p.User, &agents.ChatOptions{
		SystemPrompt: p.System,
		Schema:       p.Schema,
		MaxTokens:    c.cfg.MaxTokens,
		Temperature:  c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	return resp.Text, nil
}

// CompleteWithImage uploads the PNG and prompts the model with it attached.
// The Files API wants a path, so the image takes a detour through a temp
// file.
func (c *Client) CompleteWithImage(ctx context.Context, p Prompt, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "planform-shot-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp screenshot: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(png); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write temp screenshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp screenshot: %w", err)
	}

	file, err := anthropic.UploadFile(tmp.Name(), c.cfg.APIKey)
	if err != nil {
		return "", fmt.Errorf("uploading screenshot: %w", err)
	}

	settings := types.RequestSettings{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	resp, err := anthropic.PromptWithSettings(
		p.System, p.User, p.Schema, c.cfg.APIKey, settings, types.File{ID: file.ID},
	)
	if err != nil {
		return "", fmt.Errorf("vision prompt: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("empty vision response")
	}
	return resp.Content[0].Text, nil
}
