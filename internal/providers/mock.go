package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	MockClientName   = "mock"
	MockAnalyzerName = "mock-analyzer"
)

// MockClient is an LLMClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ResponseText string
	Err          error

	// Requests holds every request received, in order.
	mu       sync.Mutex
	Requests []*ChatRequest

	requestCount atomic.Int64
}

// NewMockClient creates a mock client returning text.
func NewMockClient(text string) *MockClient {
	return &MockClient{ResponseText: text}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// RequestCount returns how many requests have been made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// LastRequest returns the most recent request, or nil.
func (c *MockClient) LastRequest() *ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Requests) == 0 {
		return nil
	}
	return c.Requests[len(c.Requests)-1]
}

// Chat records the request and returns the configured response.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.Requests = append(c.Requests, req)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			result.ErrorMessage = ctx.Err().Error()
			return result, ctx.Err()
		}
	}

	if c.Err != nil {
		result.ErrorMessage = c.Err.Error()
		result.ExecutionTime = time.Since(start)
		return result, c.Err
	}

	result.Success = true
	result.Content = c.ResponseText
	result.FinishReason = "stop"
	for _, m := range req.Messages {
		result.PromptTokens += len(m.Content) / 4
	}
	result.CompletionTokens = len(c.ResponseText) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// MockAnalyzer is a DocumentAnalyzer that replays scripted poll statuses.
type MockAnalyzer struct {
	// Statuses are returned by successive polls. The last one repeats.
	Statuses []string

	// Result is the analysis returned on success, or immediately when
	// Immediate is set.
	Result    json.RawMessage
	Immediate bool

	SubmitErr error
	PollErr   error

	// Failure details for a failed status.
	ErrorCode    string
	ErrorMessage string

	submitCount atomic.Int64
	pollCount   atomic.Int64
}

// NewMockAnalyzer creates an analyzer that reports statuses in order and
// then returns result.
func NewMockAnalyzer(result string, statuses ...string) *MockAnalyzer {
	return &MockAnalyzer{
		Statuses: statuses,
		Result:   json.RawMessage(result),
	}
}

// Name returns the analyzer identifier.
func (m *MockAnalyzer) Name() string {
	return MockAnalyzerName
}

// SubmitCount returns how many documents were submitted.
func (m *MockAnalyzer) SubmitCount() int64 {
	return m.submitCount.Load()
}

// PollCount returns how many polls were made.
func (m *MockAnalyzer) PollCount() int64 {
	return m.pollCount.Load()
}

// Submit returns an operation handle or the immediate result.
func (m *MockAnalyzer) Submit(ctx context.Context, document []byte, contentType string) (*Submission, error) {
	n := m.submitCount.Add(1)
	if m.SubmitErr != nil {
		return nil, m.SubmitErr
	}
	if m.Immediate {
		return &Submission{Result: m.Result, StatusCode: 200}, nil
	}
	return &Submission{
		OperationURL: fmt.Sprintf("mock://operations/%d", n),
		StatusCode:   202,
	}, nil
}

// Poll returns the next scripted status.
func (m *MockAnalyzer) Poll(ctx context.Context, operationURL string) (*OperationStatus, error) {
	n := int(m.pollCount.Add(1))
	if m.PollErr != nil {
		return nil, m.PollErr
	}

	status := StatusSucceeded
	if len(m.Statuses) > 0 {
		idx := n - 1
		if idx >= len(m.Statuses) {
			idx = len(m.Statuses) - 1
		}
		status = m.Statuses[idx]
	}

	op := &OperationStatus{Status: status}
	switch status {
	case StatusSucceeded:
		op.Result = m.Result
	case StatusFailed, StatusCanceled, StatusCancelled:
		op.ErrorCode = m.ErrorCode
		op.ErrorMessage = m.ErrorMessage
	}
	return op, nil
}

var (
	_ LLMClient        = (*MockClient)(nil)
	_ DocumentAnalyzer = (*MockAnalyzer)(nil)
)
