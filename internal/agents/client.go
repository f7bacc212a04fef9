// Package agents layers language-model analysis over the forecasting
// pipeline: a demand analyst, an inventory planner, and an anomaly triage
// agent, coordinated by an orchestrator. Agents receive pre-computed typed
// summaries, never raw tables, so the numbers in a prompt are exactly the
// numbers the summary package produced.
package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultModel is the completion model used when the config names none.
const DefaultModel = "claude-sonnet-4-5-20250929"

const maxCompletionTokens = 4096

// ErrDisabled means no API key is configured. The pipeline treats insight
// generation as optional: callers skip the agent layer on this error instead
// of failing the run.
var ErrDisabled = errors.New("agents: no API key configured, insight generation disabled")

// Usage accumulates token counts across completions.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add merges another usage sample into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Completer is the completion surface the agents depend on. Client is the
// production implementation.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, Usage, error)
}

// Client is a rate-limited completion client shared by all agents.
type Client struct {
	api     anthropic.Client
	model   string
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// NewClient creates the shared completion client. Returns ErrDisabled when
// apiKey is empty. The rate limit guards against a scripted caller looping
// over stores and burning quota.
func NewClient(apiKey, model string, log *zap.SugaredLogger) (*Client, error) {
	if apiKey == "" {
		return nil, ErrDisabled
	}
	if model == "" {
		model = DefaultModel
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		api:     anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		log:     log,
	}, nil
}

// Complete sends one system+user prompt pair and returns the text response.
func (c *Client) Complete(ctx context.Context, system, user string) (string, Usage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", Usage{}, fmt.Errorf("agents: rate limit wait: %w", err)
	}

	message, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxCompletionTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("agents: completion: %w", err)
	}
	usage := Usage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			c.log.Debugw("completion received",
				"model", c.model,
				"tokens_in", usage.InputTokens,
				"tokens_out", usage.OutputTokens,
			)
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("agents: no text content in completion response")
}
