// Package ocr drives a document-analysis job from upload to result: it
// submits the document, polls the operation at a fixed interval, and turns
// the service's terminal states into a result or a typed error.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/docnode"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/providers"
)

// JobState is the lifecycle of one analysis job.
type JobState string

const (
	StateSubmitted JobState = "submitted"
	StatePolling   JobState = "polling"
	StateSucceeded JobState = "succeeded"
	StateFailed    JobState = "failed"
	StateTimedOut  JobState = "timed_out"
)

const (
	DefaultPollInterval = time.Second
	DefaultMaxAttempts  = 60
)

// Config configures an Orchestrator.
type Config struct {
	Analyzer     providers.DocumentAnalyzer
	PollInterval time.Duration // Default: 1s
	MaxAttempts  int           // Default: 60
	ContentType  string        // Default: application/pdf
	Logger       *slog.Logger
}

// Orchestrator runs analysis jobs. It holds no per-job state and is safe
// for concurrent use.
type Orchestrator struct {
	analyzer     providers.DocumentAnalyzer
	pollInterval time.Duration
	maxAttempts  int
	contentType  string
	logger       *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/pdf"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		analyzer:     cfg.Analyzer,
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxAttempts,
		contentType:  cfg.ContentType,
		logger:       cfg.Logger,
	}, nil
}

// JobHandle identifies a submitted job. Immediate results travel in the
// handle itself.
type JobHandle struct {
	OperationURL string
	immediate    []byte
}

// IsImmediate reports whether the service answered synchronously.
func (h JobHandle) IsImmediate() bool {
	return h.OperationURL == ""
}

// Job records what happened to one analysis.
type Job struct {
	State    JobState
	Polls    int
	Duration time.Duration
}

// Submit uploads document and returns its handle.
func (o *Orchestrator) Submit(ctx context.Context, document []byte) (JobHandle, error) {
	sub, err := o.analyzer.Submit(ctx, document, o.contentType)
	if err != nil {
		return JobHandle{}, fmt.Errorf("failed to submit document: %w", err)
	}
	o.logger.Debug("analysis job state",
		"state", StateSubmitted,
		"immediate", sub.IsImmediate(),
		"operation", sub.OperationURL)

	if sub.IsImmediate() {
		return JobHandle{immediate: sub.Result}, nil
	}
	return JobHandle{OperationURL: sub.OperationURL}, nil
}

// AwaitCompletion waits for the job behind h to finish and returns its
// analysis. It sleeps PollInterval before each poll and gives up after
// MaxAttempts polls that report a non-terminal status.
func (o *Orchestrator) AwaitCompletion(ctx context.Context, h JobHandle) (docnode.Node, *Job, error) {
	start := time.Now()
	job := &Job{State: StateSubmitted}
	finish := func(state JobState) {
		job.State = state
		job.Duration = time.Since(start)
		o.logger.Debug("analysis job state", "state", state, "polls", job.Polls, "duration", job.Duration)
	}

	if h.IsImmediate() {
		node, err := docnode.Parse(h.immediate)
		if err != nil {
			finish(StateFailed)
			return docnode.Node{}, job, fmt.Errorf("failed to parse analysis result: %w", err)
		}
		finish(StateSucceeded)
		return node, job, nil
	}

	job.State = StatePolling
	o.logger.Debug("analysis job state", "state", StatePolling, "operation", h.OperationURL)

	lastStatus := ""
	timer := time.NewTimer(o.pollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if attempt > 1 {
			timer.Reset(o.pollInterval)
		}
		select {
		case <-ctx.Done():
			finish(StateFailed)
			return docnode.Node{}, job, ctx.Err()
		case <-timer.C:
		}

		job.Polls = attempt
		status, err := o.analyzer.Poll(ctx, h.OperationURL)
		if err != nil {
			finish(StateFailed)
			return docnode.Node{}, job, fmt.Errorf("failed to poll analysis: %w", err)
		}
		lastStatus = status.Status

		switch status.Status {
		case providers.StatusSucceeded:
			node, err := docnode.Parse(status.Result)
			if err != nil {
				finish(StateFailed)
				return docnode.Node{}, job, fmt.Errorf("failed to parse analysis result: %w", err)
			}
			finish(StateSucceeded)
			return node, job, nil

		case providers.StatusFailed, providers.StatusCanceled, providers.StatusCancelled:
			finish(StateFailed)
			return docnode.Node{}, job, &providers.JobFailedError{
				Status:  status.Status,
				Code:    status.ErrorCode,
				Message: status.ErrorMessage,
			}

		default:
			o.logger.Debug("analysis pending", "status", status.Status, "attempt", attempt, "max_attempts", o.maxAttempts)
		}
	}

	finish(StateTimedOut)
	return docnode.Node{}, job, &providers.TimeoutError{
		Attempts:   o.maxAttempts,
		Interval:   o.pollInterval,
		LastStatus: lastStatus,
	}
}

// Analyze submits document and waits for its analysis.
func (o *Orchestrator) Analyze(ctx context.Context, document []byte) (docnode.Node, *Job, error) {
	h, err := o.Submit(ctx, document)
	if err != nil {
		return docnode.Node{}, &Job{State: StateFailed}, err
	}
	return o.AwaitCompletion(ctx, h)
}
