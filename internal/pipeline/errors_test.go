package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/providers"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/recovery"
)

func TestErrorKind(t *testing.T) {
	forbidden := &providers.ForbiddenError{
		TransportError: providers.TransportError{Service: "docintel", Op: "submit", StatusCode: 403},
		Message:        "public access is disabled",
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"forbidden", forbidden, KindForbidden},
		{"wrapped forbidden", fmt.Errorf("failed to submit: %w", forbidden), KindForbidden},
		{"transport", &providers.TransportError{Service: "docintel", Op: "poll", StatusCode: 503}, KindTransport},
		{"job failed", &providers.JobFailedError{Status: "failed", Code: "InvalidRequest"}, KindJobFailed},
		{"timeout", &providers.TimeoutError{Attempts: 60}, KindTimeout},
		{"backend", fmt.Errorf("failed to invoke: %w", &providers.BackendError{Provider: "openai", StatusCode: 400}), KindBackend},
		{"unrecoverable", &recovery.UnrecoverableError{Raw: "no json"}, KindUnrecoverable},
		{"invalid input", fmt.Errorf("%w: not a pdf", ErrInvalidInput), KindInvalidInput},
		{"canceled", fmt.Errorf("failed to poll: %w", context.Canceled), KindCanceled},
		{"deadline", context.DeadlineExceeded, KindCanceled},
		{"other", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorKind(tt.err); got != tt.want {
				t.Errorf("ErrorKind() = %q, want %q", got, tt.want)
			}
		})
	}
}
