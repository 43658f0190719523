// Package pipeline wires one document through analysis, prompt assembly,
// model invocation and record recovery, and writes what comes out.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/docnode"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/flatten"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/ocr"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/prompts/extract"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/providers"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/recovery"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/skeleton"
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	OCR     *ocr.Orchestrator
	Invoker *Invoker

	// Assembler defaults to the embedded prompts.
	Assembler *extract.Assembler

	// Template is the example record. It is blanked once at construction.
	Template docnode.Node

	Rules extract.Rules

	// NormalizeNumbers converts numeric leaves to strings and repairs
	// leading-decimal numerals in the recovered record.
	NormalizeNumbers bool

	Logger *slog.Logger
}

// Engine turns a document into a record. It holds no per-document state.
type Engine struct {
	ocr       *ocr.Orchestrator
	invoker   *Invoker
	assembler *extract.Assembler
	skeleton  docnode.Node
	rules     extract.Rules
	normalize bool
	logger    *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.OCR == nil {
		return nil, fmt.Errorf("OCR orchestrator is required")
	}
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if cfg.Assembler == nil {
		cfg.Assembler = extract.NewAssembler(nil)
	}
	if cfg.Template.Kind != docnode.Mapping && cfg.Template.Kind != docnode.Sequence {
		cfg.Template = skeleton.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		ocr:       cfg.OCR,
		invoker:   cfg.Invoker,
		assembler: cfg.Assembler,
		skeleton:  skeleton.Build(cfg.Template),
		rules:     cfg.Rules,
		normalize: cfg.NormalizeNumbers,
		logger:    cfg.Logger,
	}, nil
}

// Skeleton returns the blanked template sent to the model.
func (e *Engine) Skeleton() docnode.Node {
	return e.skeleton.Clone()
}

// Invoker returns the engine's model invoker.
func (e *Engine) Invoker() *Invoker {
	return e.invoker
}

// Extraction is everything produced for one document. Fields are filled
// as far as processing got, so a failed extraction still carries the text,
// prompt and model response seen up to the failure.
type Extraction struct {
	Job    *ocr.Job
	Text   string
	Prompt extract.Message
	Chat   *providers.ChatResult

	Recovered *recovery.Record
	Record    docnode.Node
	Shape     *skeleton.ShapeReport

	Duration time.Duration
}

// Extract analyzes document and extracts its record.
func (e *Engine) Extract(ctx context.Context, document []byte) (*Extraction, error) {
	start := time.Now()

	analysis, job, err := e.ocr.Analyze(ctx, document)
	if err != nil {
		return &Extraction{Job: job, Duration: time.Since(start)}, err
	}

	x, err := e.ExtractAnalysis(ctx, analysis)
	x.Job = job
	x.Duration = time.Since(start)
	return x, err
}

// ExtractAnalysis extracts a record from an analysis result that has
// already been fetched.
func (e *Engine) ExtractAnalysis(ctx context.Context, analysis docnode.Node) (*Extraction, error) {
	x := &Extraction{Text: flatten.Flatten(analysis)}
	if x.Text == "" {
		e.logger.Warn("analysis contained no text")
	}
	return x, e.extractText(ctx, x)
}

// ExtractText extracts a record from already flattened text.
func (e *Engine) ExtractText(ctx context.Context, text string) (*Extraction, error) {
	x := &Extraction{Text: text}
	return x, e.extractText(ctx, x)
}

func (e *Engine) extractText(ctx context.Context, x *Extraction) error {
	start := time.Now()
	defer func() {
		if x.Duration == 0 {
			x.Duration = time.Since(start)
		}
	}()

	msg, err := e.assembler.Assemble(e.skeleton, x.Text, e.rules)
	if err != nil {
		return fmt.Errorf("failed to assemble prompt: %w", err)
	}
	x.Prompt = msg
	if msg.Truncated {
		e.logger.Warn("document text truncated for prompt", "runes", len([]rune(x.Text)))
	}

	x.Chat, err = e.invoker.Invoke(ctx, msg)
	if err != nil {
		return err
	}

	rec, err := recovery.Recover(x.Chat.Content, e.skeleton)
	if err != nil {
		return fmt.Errorf("failed to recover record: %w", err)
	}
	x.Recovered = rec
	x.Record = rec.Node
	if e.normalize {
		x.Record = recovery.NormalizeRecord(rec.Node)
	}

	noteField := e.rules.NoteField
	if noteField == "" {
		noteField = extract.DefaultRules().NoteField
	}
	shape, err := skeleton.Check(e.skeleton, x.Record, noteField)
	if err != nil {
		e.logger.Warn("shape check failed", "error", err)
	} else {
		x.Shape = shape
		if !shape.Conforms {
			e.logger.Warn("record does not match template",
				"missing", len(shape.Missing),
				"extra", len(shape.Extra),
				"violations", len(shape.Violations))
		}
	}

	e.logger.Debug("record recovered", "strategy", rec.Strategy, "inner", rec.Inner)
	return nil
}
