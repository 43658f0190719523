package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	DocIntelName              = "azure-document-intelligence"
	DocIntelDefaultModelID    = "prebuilt-document"
	DocIntelDefaultAPIVersion = "2023-07-31"

	docIntelKeyHeader = "Ocp-Apim-Subscription-Key"
)

// DocIntelConfig holds configuration for the Azure Document Intelligence client.
type DocIntelConfig struct {
	Endpoint   string
	APIKey     string
	ModelID    string        // Default: prebuilt-document
	APIVersion string        // Default: 2023-07-31
	Timeout    time.Duration // Per request. Default: 60s
	RateLimit  float64       // Requests per second. Default: 15
	Retries    int           // Extra attempts on network errors, 429 and 5xx
	RetryDelay time.Duration // Default: 500ms
	HTTPClient *http.Client  // Optional (tests)
	Logger     *slog.Logger
}

// DocIntelClient submits documents to Azure Document Intelligence and polls
// the resulting analyze operations.
type DocIntelClient struct {
	endpoint   string
	apiKey     string
	modelID    string
	apiVersion string
	retries    int
	retryDelay time.Duration
	client     *http.Client
	limiter    *RateLimiter
	logger     *slog.Logger
}

// NewDocIntelClient creates a new Document Intelligence client.
func NewDocIntelClient(cfg DocIntelConfig) *DocIntelClient {
	if cfg.ModelID == "" {
		cfg.ModelID = DocIntelDefaultModelID
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DocIntelDefaultAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &DocIntelClient{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		modelID:    cfg.ModelID,
		apiVersion: cfg.APIVersion,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		client:     httpClient,
		limiter:    NewRateLimiter(cfg.RateLimit),
		logger:     cfg.Logger,
	}
}

// Name returns the provider identifier.
func (c *DocIntelClient) Name() string {
	return DocIntelName
}

// AnalyzeURL returns the submit URL for the configured model.
func (c *DocIntelClient) AnalyzeURL() string {
	q := url.Values{}
	q.Set("api-version", c.apiVersion)
	return fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?%s",
		c.endpoint, url.PathEscape(c.modelID), q.Encode())
}

// Submit uploads a document for analysis.
func (c *DocIntelClient) Submit(ctx context.Context, document []byte, contentType string) (*Submission, error) {
	if contentType == "" {
		contentType = "application/pdf"
	}

	resp, err := c.do(ctx, "submit", http.MethodPost, c.AnalyzeURL(), document, contentType)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, &TransportError{
			Service:    DocIntelName,
			Op:         "submit",
			StatusCode: resp.StatusCode,
			Preview:    preview(resp.Body, c.apiKey),
		}
	}

	sub := &Submission{
		OperationURL: resp.Header.Get("Operation-Location"),
		StatusCode:   resp.StatusCode,
	}
	if sub.IsImmediate() {
		if !json.Valid(resp.Body) {
			return nil, &TransportError{
				Service:    DocIntelName,
				Op:         "submit",
				StatusCode: resp.StatusCode,
				Preview:    preview(resp.Body, c.apiKey),
				Err:        errors.New("response has neither Operation-Location nor a JSON body"),
			}
		}
		sub.Result = json.RawMessage(resp.Body)
	}

	c.logger.Debug("document submitted",
		"status_code", resp.StatusCode,
		"bytes", len(document),
		"immediate", sub.IsImmediate())
	return sub, nil
}

// Poll fetches the current state of an analyze operation.
func (c *DocIntelClient) Poll(ctx context.Context, operationURL string) (*OperationStatus, error) {
	resp, err := c.do(ctx, "poll", http.MethodGet, operationURL, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Service:    DocIntelName,
			Op:         "poll",
			StatusCode: resp.StatusCode,
			Preview:    preview(resp.Body, c.apiKey),
		}
	}

	var op docIntelOperation
	if err := json.Unmarshal(resp.Body, &op); err != nil {
		return nil, &TransportError{
			Service:    DocIntelName,
			Op:         "poll",
			StatusCode: resp.StatusCode,
			Preview:    preview(resp.Body, c.apiKey),
			Err:        fmt.Errorf("failed to decode operation: %w", err),
		}
	}

	status := &OperationStatus{Status: strings.ToLower(strings.TrimSpace(op.Status))}
	switch status.Status {
	case StatusSucceeded:
		status.Result = op.AnalyzeResult
		if len(status.Result) == 0 {
			status.Result = json.RawMessage(resp.Body)
		}
	case StatusFailed, StatusCanceled, StatusCancelled:
		status.ErrorCode, status.ErrorMessage = op.Error.detail()
	}
	return status, nil
}

// httpResult is a fully read response.
type httpResult struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// do performs one logical request, retrying network errors, 429 and 5xx.
// A 403 is returned immediately as a *ForbiddenError.
func (c *DocIntelClient) do(ctx context.Context, op, method, target string, body []byte, contentType string) (*httpResult, error) {
	var result *httpResult
	attempt := 0

	err := retry.Do(
		func() error {
			attempt++
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(&TransportError{Service: DocIntelName, Op: op, Err: err})
			}

			var reader io.Reader
			if body != nil {
				reader = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(ctx, method, target, reader)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			req.Header.Set(docIntelKeyHeader, c.apiKey)
			if contentType != "" {
				req.Header.Set("Content-Type", contentType)
			}

			resp, err := c.client.Do(req)
			if err != nil {
				return &TransportError{Service: DocIntelName, Op: op, Err: err}
			}
			respBody, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return &TransportError{Service: DocIntelName, Op: op, StatusCode: resp.StatusCode, Err: err}
			}

			switch {
			case resp.StatusCode == http.StatusForbidden:
				return c.forbidden(op, respBody)
			case resp.StatusCode == http.StatusTooManyRequests:
				c.limiter.Record429(parseRetryAfter(resp.Header.Get("Retry-After")))
				return &TransportError{Service: DocIntelName, Op: op, StatusCode: resp.StatusCode, Preview: preview(respBody, c.apiKey)}
			case resp.StatusCode >= 500:
				return &TransportError{Service: DocIntelName, Op: op, StatusCode: resp.StatusCode, Preview: preview(respBody, c.apiKey)}
			}

			result = &httpResult{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.retries+1)),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var te *TransportError
			if errors.As(err, &te) {
				var fe *ForbiddenError
				return !errors.As(err, &fe) && te.Retryable()
			}
			return false
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying document intelligence request",
				"op", op,
				"attempt", n+1,
				"error", err)
		}),
	)
	if err != nil {
		c.logger.Debug("document intelligence request failed", "op", op, "attempts", attempt, "error", err)
		return nil, err
	}
	return result, nil
}

// forbidden builds the 403 error with the service's message and the usual
// network-restriction causes.
func (c *DocIntelClient) forbidden(op string, body []byte) error {
	var parsed docIntelErrorResponse
	message := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		_, message = parsed.Error.detail()
	}
	return &ForbiddenError{
		TransportError: TransportError{
			Service:    DocIntelName,
			Op:         op,
			StatusCode: http.StatusForbidden,
			Preview:    preview(body, c.apiKey),
		},
		Message: message,
		Hints:   forbiddenHints,
	}
}

var _ DocumentAnalyzer = (*DocIntelClient)(nil)
