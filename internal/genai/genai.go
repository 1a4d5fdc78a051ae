// Package genai provides the AI completion collaborator for the emotional
// support flow, backed by the OpenAI API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultTimeout bounds a single completion call so a hung upstream cannot
// pin the user's conversation.
const DefaultTimeout = 30 * time.Second

// systemPrompt frames every completion. Spanish by product decision: the
// bot serves a Spanish-speaking student population.
const systemPrompt = "Eres Vivi, asistente virtual del área de psicología de la Universidad del Valle. " +
	"Escuchas con empatía y das orientación emocional inicial breve, en español, " +
	"sin diagnosticar ni reemplazar atención profesional. Si percibes riesgo alto, " +
	"recomienda buscar ayuda inmediata en la Línea 106 o la Línea 123."

// Completer is the contract the AI assist flow consumes.
type Completer interface {
	Complete(ctx context.Context, userText string) (string, error)
}

// Opts holds configuration for the completion client.
type Opts struct {
	APIKey  string
	Model   openai.ChatModel
	Timeout time.Duration
}

// Option configures the completion client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the completion model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	client  openai.Client
	model   openai.ChatModel
	timeout time.Duration
}

var _ Completer = (*Client)(nil)

// NewClient creates a completion client. The API key is required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Model: openai.ChatModelGPT4oMini, Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	return &Client{
		client:  openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Complete sends the user's message with the fixed system prompt and
// returns the model's reply.
func (c *Client) Complete(ctx context.Context, userText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	slog.Debug("genai: completion requested", "input_length", len(userText))
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userText),
		},
	})
	if err != nil {
		slog.Error("genai: completion failed", "error", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	out := resp.Choices[0].Message.Content
	slog.Debug("genai: completion succeeded", "output_length", len(out))
	return out, nil
}
