package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/prompts/extract"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/providers"
)

// DefaultMaxTokens caps the model's answer.
const DefaultMaxTokens = 4000

// InvokerConfig configures an Invoker.
type InvokerConfig struct {
	Client      providers.LLMClient
	Model       string  // Overrides the client's default model or deployment
	Temperature float64 // Default: 0
	MaxTokens   int     // Default: 4000
	Logger      *slog.Logger
}

// Invoker sends assembled prompts to the configured backend.
type Invoker struct {
	client      providers.LLMClient
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// NewInvoker creates an Invoker.
func NewInvoker(cfg InvokerConfig) (*Invoker, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Invoker{
		client:      cfg.Client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger,
	}, nil
}

// Temperature returns the sampling temperature sent with every request.
func (i *Invoker) Temperature() float64 {
	return i.temperature
}

// MaxTokens returns the completion cap sent with every request.
func (i *Invoker) MaxTokens() int {
	return i.maxTokens
}

// Invoke sends msg as a system and a user message. The result is returned
// alongside any error so callers can record failed calls.
func (i *Invoker) Invoke(ctx context.Context, msg extract.Message) (*providers.ChatResult, error) {
	req := &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: msg.System},
			{Role: "user", Content: msg.User},
		},
		Model:       i.model,
		Temperature: i.temperature,
		MaxTokens:   i.maxTokens,
		RequestID:   uuid.New().String(),
	}

	i.logger.Debug("invoking model",
		"provider", i.client.Name(),
		"request_id", req.RequestID,
		"prompt_version", msg.Version,
		"truncated", msg.Truncated)

	result, err := i.client.Chat(ctx, req)
	if err != nil {
		return result, fmt.Errorf("failed to invoke %s: %w", i.client.Name(), err)
	}

	i.logger.Debug("model responded",
		"provider", result.Provider,
		"model", result.ModelUsed,
		"prompt_tokens", result.PromptTokens,
		"completion_tokens", result.CompletionTokens,
		"finish_reason", result.FinishReason,
		"duration", result.ExecutionTime)
	if result.FinishReason == "length" {
		i.logger.Warn("model response hit the token limit", "max_tokens", i.maxTokens)
	}
	return result, nil
}
