package providers

import (
	"encoding/json"
	"time"
)

// docIntelOperation is the body of an analyze-operation poll.
type docIntelOperation struct {
	Status              string          `json:"status"`
	CreatedDateTime     time.Time       `json:"createdDateTime"`
	LastUpdatedDateTime time.Time       `json:"lastUpdatedDateTime"`
	AnalyzeResult       json.RawMessage `json:"analyzeResult,omitempty"`
	Error               *docIntelError  `json:"error,omitempty"`
}

// docIntelError is the service's error object, found both in poll bodies
// and in non-2xx responses wrapped as {"error": {...}}.
type docIntelError struct {
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	InnerError *docIntelError  `json:"innererror,omitempty"`
	Details    []docIntelError `json:"details,omitempty"`
}

// docIntelErrorResponse wraps docIntelError in non-2xx bodies.
type docIntelErrorResponse struct {
	Error docIntelError `json:"error"`
}

// detail returns the most specific message available.
func (e *docIntelError) detail() (code, message string) {
	if e == nil {
		return "", ""
	}
	code, message = e.Code, e.Message
	if e.InnerError != nil && e.InnerError.Message != "" {
		code, message = e.InnerError.Code, e.InnerError.Message
	}
	return code, message
}
