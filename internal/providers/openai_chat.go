package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
)

const (
	AzureOpenAIName = "azure-openai"
	OpenAIName      = "openai"

	AzureOpenAIDefaultAPIVersion = "2023-10-01"
	OpenAIDefaultModel           = "gpt-3.5-turbo"
)

// AzureOpenAIConfig configures the Azure OpenAI backend. The deployment
// name is sent as the model.
type AzureOpenAIConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string        // Default: 2023-10-01
	Timeout    time.Duration // Default: 120s
	MaxRetries int           // SDK retries
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIConfig configures the public OpenAI backend.
type OpenAIConfig struct {
	APIKey     string
	Model      string // Default: gpt-3.5-turbo
	BaseURL    string // Optional (tests)
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// ChatClient implements LLMClient with the official OpenAI SDK. One value
// serves either backend; they differ only in request options.
type ChatClient struct {
	name   string
	model  string
	apiKey string
	client openai.Client
}

// NewAzureOpenAIClient creates a chat client for an Azure OpenAI deployment.
func NewAzureOpenAIClient(cfg AzureOpenAIConfig) *ChatClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = AzureOpenAIDefaultAPIVersion
	}
	opts := []option.RequestOption{
		azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
	}
	opts = append(opts, commonOptions(cfg.HTTPClient, cfg.Timeout, cfg.MaxRetries)...)

	return &ChatClient{
		name:   AzureOpenAIName,
		model:  cfg.Deployment,
		apiKey: cfg.APIKey,
		client: openai.NewClient(opts...),
	}
}

// NewOpenAIClient creates a chat client for api.openai.com.
func NewOpenAIClient(cfg OpenAIConfig) *ChatClient {
	if cfg.Model == "" {
		cfg.Model = OpenAIDefaultModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, commonOptions(cfg.HTTPClient, cfg.Timeout, cfg.MaxRetries)...)

	return &ChatClient{
		name:   OpenAIName,
		model:  cfg.Model,
		apiKey: cfg.APIKey,
		client: openai.NewClient(opts...),
	}
}

func commonOptions(httpClient *http.Client, timeout time.Duration, maxRetries int) []option.RequestOption {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return []option.RequestOption{
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(maxRetries),
	}
}

// Name returns the backend identifier.
func (c *ChatClient) Name() string {
	return c.name
}

// Model returns the model or deployment requests are sent to by default.
func (c *ChatClient) Model() string {
	return c.model
}

// Chat sends a chat completion request.
func (c *ChatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}

	result := &ChatResult{
		Provider:  c.name,
		ModelUsed: model,
		RequestID: req.RequestID,
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	result.ExecutionTime = time.Since(start)
	if err != nil {
		mapped := c.mapError(err)
		result.ErrorMessage = mapped.Error()
		return result, mapped
	}

	if len(resp.Choices) == 0 {
		err := &BackendError{
			Provider:   c.name,
			StatusCode: http.StatusOK,
			Preview:    fmt.Sprintf("empty choices in response (model=%s, id=%s)", resp.Model, resp.ID),
		}
		result.ErrorMessage = err.Error()
		return result, err
	}

	choice := resp.Choices[0]
	result.Success = true
	result.Content = choice.Message.Content
	result.FinishReason = string(choice.FinishReason)
	result.PromptTokens = int(resp.Usage.PromptTokens)
	result.CompletionTokens = int(resp.Usage.CompletionTokens)
	result.TotalTokens = int(resp.Usage.TotalTokens)
	if resp.Model != "" {
		result.ModelUsed = resp.Model
	}
	if result.RequestID == "" {
		result.RequestID = resp.ID
	}
	return result, nil
}

// mapError turns SDK errors into BackendError or TransportError. Context
// errors pass through.
func (c *ChatClient) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		return &BackendError{
			Provider:   c.name,
			StatusCode: apiErr.StatusCode,
			Preview:    preview([]byte(msg), c.apiKey),
			Err:        err,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &TransportError{Service: c.name, Op: "chat", Err: err}
}

var _ LLMClient = (*ChatClient)(nil)
