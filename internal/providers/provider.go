package providers

import (
	"context"
	"encoding/json"
	"time"
)

// LLMClient is the interface for chat completion backends.
// Exactly one implementation is selected per configuration.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "azure-openai").
	Name() string
}

// DocumentAnalyzer is the transport for an asynchronous document-analysis
// service. Job state handling lives with the caller; implementations only
// move bytes and classify transport failures.
type DocumentAnalyzer interface {
	// Name returns the provider identifier (e.g., "azure-document-intelligence").
	Name() string

	// Submit uploads a document and returns either an operation to poll or
	// an immediate result.
	Submit(ctx context.Context, document []byte, contentType string) (*Submission, error)

	// Poll fetches the current status of a submitted operation.
	Poll(ctx context.Context, operationURL string) (*OperationStatus, error)
}

// Submission is the service's answer to a document upload.
type Submission struct {
	// OperationURL is the job handle. Empty when the service answered
	// synchronously.
	OperationURL string `json:"operation_url,omitempty"`

	// Result holds the analysis when OperationURL is empty.
	Result json.RawMessage `json:"result,omitempty"`

	StatusCode int `json:"status_code"`
}

// IsImmediate reports whether the submission already carries the result.
func (s *Submission) IsImmediate() bool {
	return s.OperationURL == ""
}

// Operation statuses reported by the analysis service.
const (
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
	StatusCancelled  = "cancelled"
	StatusRunning    = "running"
	StatusNotStarted = "notstarted"
)

// OperationStatus is one poll response.
type OperationStatus struct {
	// Status is the lower-cased service status.
	Status string `json:"status"`

	// Result is the analysis payload once Status is succeeded.
	Result json.RawMessage `json:"result,omitempty"`

	// Failure details when Status is failed.
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	// Required
	Messages []Message `json:"messages"`

	// Model or deployment (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters. Temperature is always sent, including zero.
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// ChatResult is the complete response from an LLM call.
type ChatResult struct {
	// Response content
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Timing
	ExecutionTime time.Duration `json:"execution_time"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Request tracking
	RequestID string `json:"request_id"`

	// Success/error
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}
