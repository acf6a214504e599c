// Package genai provides the linguistic assist backed by the OpenAI chat
// completions API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.ChatModelGPT4oMini

const maxCompletionTokens = 64

// chatService defines minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) {
		o.BaseURL = url
	}
}

// Client rephrases user statements through chat completions.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a GenAI client. An API key is required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	slog.Debug("genai.NewClient: client created", "model", model, "custom_base_url", cfg.BaseURL != "")
	return &Client{chat: &cli.Chat.Completions, model: model}, nil
}

const systemPromptBase = "You rewrite a person's words into one short first-person statement. " +
	"Keep their own words wherever possible. Never add feelings, causes or details they did not mention. " +
	"Reply with the statement only: a single line, no quotes, no explanation."

func systemPrompt(target models.Phrasing) string {
	switch target {
	case models.PhrasingGoal:
		return systemPromptBase + " Phrase it as a goal, for example: I want to run a marathon."
	default:
		return systemPromptBase + " Phrase it as a problem, for example: I feel anxious at work."
	}
}

// Normalize implements the engine's LinguisticAssist.
func (c *Client) Normalize(ctx context.Context, text string, target models.Phrasing) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(target)),
			openai.UserMessage(text),
		},
		Temperature:         openai.Float(0),
		MaxCompletionTokens: openai.Int(maxCompletionTokens),
	}
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Warn("genai.Client.Normalize: completion failed", "model", c.model, "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("empty completion")
	}
	return out, nil
}
