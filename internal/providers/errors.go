package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// maxPreviewBytes bounds response bodies carried in errors.
const maxPreviewBytes = 512

// TransportError is a failure reaching a service: a network fault or an
// unexpected HTTP status.
type TransportError struct {
	Service    string
	Op         string // "submit", "poll", "chat"
	StatusCode int    // 0 for network faults
	Preview    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		msg := fmt.Sprintf("%s %s failed (status %d)", e.Service, e.Op, e.StatusCode)
		if e.Preview != "" {
			msg += ": " + e.Preview
		}
		return msg
	}
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the request may succeed.
func (e *TransportError) Retryable() bool {
	if e.StatusCode == 0 {
		return e.Err != nil &&
			!errors.Is(e.Err, context.Canceled) &&
			!errors.Is(e.Err, context.DeadlineExceeded)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ForbiddenError is a 403 from a service. Hints name the usual causes.
type ForbiddenError struct {
	TransportError
	Message string
	Hints   []string
}

func (e *ForbiddenError) Error() string {
	msg := fmt.Sprintf("%s %s forbidden (status 403)", e.Service, e.Op)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Hints) > 0 {
		msg += "; check: " + strings.Join(e.Hints, "; ")
	}
	return msg
}

func (e *ForbiddenError) Unwrap() error {
	return &e.TransportError
}

// forbiddenHints are shown for every 403 from the analysis service.
var forbiddenHints = []string{
	"the API key belongs to this resource and region",
	"Networking > Firewalls and virtual networks allows this client (Selected networks blocks public callers)",
	"the client's public IP is listed under allowed IP addresses",
	"or call the resource through its private endpoint from inside the virtual network",
}

// JobFailedError is a job the service reported as failed or canceled.
type JobFailedError struct {
	Status  string
	Code    string
	Message string
}

func (e *JobFailedError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("analysis %s: %s: %s", e.Status, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("analysis %s: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("analysis %s", e.Status)
	}
}

// TimeoutError means polling ran out of attempts while the job was still
// running. The job's final state is unknown.
type TimeoutError struct {
	Attempts   int
	Interval   time.Duration
	LastStatus string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analysis still %q after %d polls at %s intervals", e.LastStatus, e.Attempts, e.Interval)
}

// BackendError is a non-2xx answer from the LLM backend.
type BackendError struct {
	Provider   string
	StatusCode int
	Preview    string
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Preview)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Preview)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// preview returns body bounded to maxPreviewBytes with any secret removed.
func preview(body []byte, secrets ...string) string {
	s := strings.TrimSpace(string(body))
	for _, secret := range secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "[redacted]")
		}
	}
	return truncate(s, maxPreviewBytes)
}

// truncate shortens s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
