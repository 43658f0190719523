package pipeline

import (
	"context"
	"errors"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/providers"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/recovery"
)

// ErrInvalidInput is returned for paths that are not readable PDFs.
var ErrInvalidInput = errors.New("invalid input")

// Error kinds reported by ErrorKind.
const (
	KindTransport     = "transport"
	KindForbidden     = "forbidden"
	KindJobFailed     = "job_failed"
	KindTimeout       = "timeout"
	KindBackend       = "backend"
	KindUnrecoverable = "unrecoverable"
	KindInvalidInput  = "invalid_input"
	KindCanceled      = "canceled"
	KindInternal      = "internal"
)

// ErrorKind classifies err for reporting. It returns "" for nil.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var (
		forbidden *providers.ForbiddenError
		transport *providers.TransportError
		jobFailed *providers.JobFailedError
		timeout   *providers.TimeoutError
		backend   *providers.BackendError
	)
	switch {
	case errors.As(err, &forbidden):
		return KindForbidden
	case errors.As(err, &jobFailed):
		return KindJobFailed
	case errors.As(err, &timeout):
		return KindTimeout
	case errors.As(err, &backend):
		return KindBackend
	case errors.As(err, &transport):
		return KindTransport
	case errors.Is(err, recovery.ErrUnrecoverable):
		return KindUnrecoverable
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
