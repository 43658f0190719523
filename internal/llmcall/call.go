// Package llmcall records every model call with the prompt version that
// produced it, so an output file can be traced back to its exact request.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/providers"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/skeleton"
)

// Call represents a recorded LLM API call.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	DocumentPath string `json:"document_path,omitempty"`
	RunID        string `json:"run_id,omitempty"`

	// Prompt traceability
	PromptKey     string `json:"prompt_key"`
	PromptVersion string `json:"prompt_version,omitempty"`

	// Model info
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`

	// Token usage
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	// Response
	Response     string `json:"response"`
	FinishReason string `json:"finish_reason,omitempty"`

	// Recovery outcome
	Strategy string                `json:"strategy,omitempty"`
	Shape    *skeleton.ShapeReport `json:"shape,omitempty"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording an LLM call.
type RecordOptions struct {
	DocumentPath string
	RunID        string

	PromptKey     string
	PromptVersion string

	// Pointer to distinguish "not set" from "set to 0".
	Temperature *float64
	MaxTokens   int
}

// FromChatResult creates a Call from a ChatResult.
// Returns nil if result is nil.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *Call {
	if result == nil {
		return nil
	}

	call := &Call{
		ID:            uuid.New().String(),
		Timestamp:     time.Now(),
		LatencyMs:     int(result.ExecutionTime.Milliseconds()),
		DocumentPath:  opts.DocumentPath,
		RunID:         opts.RunID,
		PromptKey:     opts.PromptKey,
		PromptVersion: opts.PromptVersion,
		Provider:      result.Provider,
		Model:         result.ModelUsed,
		Temperature:   opts.Temperature,
		MaxTokens:     opts.MaxTokens,
		InputTokens:   result.PromptTokens,
		OutputTokens:  result.CompletionTokens,
		Response:      result.Content,
		FinishReason:  result.FinishReason,
		Success:       result.Success,
	}

	if !result.Success {
		call.Error = result.ErrorMessage
	}
	return call
}

// Fail marks the call as failed with err. A call can succeed at the
// transport level and still fail here when its response is unusable.
func (c *Call) Fail(err error) {
	if c == nil || err == nil {
		return
	}
	c.Success = false
	c.Error = err.Error()
}
