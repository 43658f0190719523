package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/export"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/llmcall"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/metrics"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/prompts/extract"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/recovery"
)

// DefaultMaxWorkers bounds concurrent documents in a batch.
const DefaultMaxWorkers = 4

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Engine *Engine

	// OutputDir receives the outputs. Empty writes next to each PDF.
	OutputDir string

	// RecordCalls writes {out}/{base}.call.json for every model call.
	RecordCalls bool

	// Recorder replaces the per-document call files when set.
	Recorder llmcall.Recorder

	// Exporter upserts records into a spreadsheet. Nil disables it.
	Exporter *export.Exporter

	MaxWorkers int
	Logger     *slog.Logger
}

// Processor runs documents end to end and writes their outputs.
type Processor struct {
	engine      *Engine
	outputDir   string
	recordCalls bool
	recorder    llmcall.Recorder
	exporter    *export.Exporter
	maxWorkers  int
	stats       *metrics.Collector
	runID       string
	logger      *slog.Logger
}

// NewProcessor creates a Processor. Each Processor gets its own run ID,
// stamped on every call record it writes.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Processor{
		engine:      cfg.Engine,
		outputDir:   cfg.OutputDir,
		recordCalls: cfg.RecordCalls || cfg.Recorder != nil,
		recorder:    cfg.Recorder,
		exporter:    cfg.Exporter,
		maxWorkers:  cfg.MaxWorkers,
		stats:       metrics.NewCollector(),
		runID:       uuid.New().String(),
		logger:      cfg.Logger,
	}, nil
}

// RunID identifies this processor's run in call records.
func (p *Processor) RunID() string {
	return p.runID
}

// Stats summarizes the model calls made by this processor so far.
func (p *Processor) Stats() *metrics.Stats {
	return p.stats.Stats()
}

// MaxWorkers returns the batch concurrency limit.
func (p *Processor) MaxWorkers() int {
	return p.maxWorkers
}

// Outcome is the result of processing one document.
type Outcome struct {
	Path       string            `json:"path" yaml:"path"`
	OutputPath string            `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	RawPath    string            `json:"raw_path,omitempty" yaml:"raw_path,omitempty"`
	CallPath   string            `json:"call_path,omitempty" yaml:"call_path,omitempty"`
	Pages      int               `json:"pages,omitempty" yaml:"pages,omitempty"`
	Strategy   recovery.Strategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Conforms   bool              `json:"conforms" yaml:"conforms"`
	Duration   time.Duration     `json:"duration" yaml:"duration"`
	Err        error             `json:"-" yaml:"-"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind  string            `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Extraction *Extraction       `json:"-" yaml:"-"`
}

// OK reports whether the document produced a record.
func (o *Outcome) OK() bool {
	return o.Err == nil
}

func (o *Outcome) fail(err error) {
	o.Err = err
	o.Error = err.Error()
	o.ErrorKind = ErrorKind(err)
}

// ProcessFile validates pdfPath, extracts its record and writes:
//
//	{out}/{base}.json       the record, indented, keys in template order
//	{out}/{base}.raw.txt    the model response, when no record could be recovered
//	{out}/{base}.call.json  the call record, when call recording is on
//
// and upserts the record into the spreadsheet when an exporter is
// configured. The returned Outcome is never nil; its Err equals the error.
func (p *Processor) ProcessFile(ctx context.Context, pdfPath string) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{Path: pdfPath}
	logger := p.logger.With("document", pdfPath)

	document, pages, err := readPDF(pdfPath)
	if err != nil {
		out.fail(err)
		out.Duration = time.Since(start)
		logger.Error("invalid document", "error", err)
		return out, err
	}
	out.Pages = pages
	logger.Info("processing document", "pages", pages, "bytes", len(document))

	x, err := p.engine.Extract(ctx, document)
	out.Extraction = x

	if x != nil && x.Chat != nil {
		out.CallPath = p.recordCall(pdfPath, x, err, logger)
	}

	if err != nil {
		if errors.Is(err, recovery.ErrUnrecoverable) && x != nil && x.Chat != nil {
			rawPath := p.outputPath(pdfPath, ".raw.txt")
			if werr := writeFile(rawPath, []byte(x.Chat.Content)); werr != nil {
				logger.Error("failed to save raw response", "error", werr)
			} else {
				out.RawPath = rawPath
				logger.Warn("saved unrecoverable model response", "path", rawPath)
			}
		}
		out.fail(err)
		out.Duration = time.Since(start)
		logger.Error("extraction failed", "kind", out.ErrorKind, "error", err)
		return out, err
	}

	out.Strategy = x.Recovered.Strategy
	out.Conforms = x.Shape != nil && x.Shape.Conforms

	body, err := x.Record.Indent()
	if err != nil {
		err = fmt.Errorf("failed to encode record: %w", err)
		out.fail(err)
		out.Duration = time.Since(start)
		return out, err
	}
	jsonPath := p.outputPath(pdfPath, ".json")
	if err := writeFile(jsonPath, append(body, '\n')); err != nil {
		out.fail(err)
		out.Duration = time.Since(start)
		return out, err
	}
	out.OutputPath = jsonPath

	if p.exporter != nil {
		if res, err := p.exporter.Upsert(x.Record); err != nil {
			logger.Error("spreadsheet export failed", "path", p.exporter.Path(), "error", err)
		} else {
			logger.Info("spreadsheet updated", "path", p.exporter.Path(), "row", res.Row, "updated", res.Updated)
		}
	}

	out.Duration = time.Since(start)
	logger.Info("document processed",
		"output", jsonPath,
		"strategy", out.Strategy,
		"conforms", out.Conforms,
		"duration", out.Duration)
	return out, nil
}

// recordCall adds the call to the run stats, writes the call record and
// returns its path, or "" when recording is disabled or fails.
func (p *Processor) recordCall(pdfPath string, x *Extraction, extractErr error, logger *slog.Logger) string {
	temp := p.engine.Invoker().Temperature()
	call := llmcall.FromChatResult(x.Chat, llmcall.RecordOptions{
		DocumentPath:  pdfPath,
		RunID:         p.runID,
		PromptKey:     extract.UserPromptKey,
		PromptVersion: x.Prompt.Version,
		Temperature:   &temp,
		MaxTokens:     p.engine.Invoker().MaxTokens(),
	})
	if x.Recovered != nil {
		call.Strategy = string(x.Recovered.Strategy)
	}
	call.Shape = x.Shape
	call.Fail(extractErr)
	_ = p.stats.RecordCall(call)

	if !p.recordCalls {
		return ""
	}
	recorder := p.recorder
	if recorder == nil {
		recorder = llmcall.NewFileRecorder(p.OutputDir(pdfPath), p.logger)
	}
	if err := recorder.RecordCall(call); err != nil {
		logger.Warn("failed to record llm call", "error", err)
		return ""
	}
	if fr, ok := recorder.(*llmcall.FileRecorder); ok {
		return fr.PathFor(call)
	}
	return ""
}

// OutputDir returns where outputs for pdfPath are written.
func (p *Processor) OutputDir(pdfPath string) string {
	if p.outputDir != "" {
		return p.outputDir
	}
	return filepath.Dir(pdfPath)
}

func (p *Processor) outputPath(pdfPath, suffix string) string {
	return filepath.Join(p.OutputDir(pdfPath), baseName(pdfPath)+suffix)
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// readPDF checks that path is a PDF with at least one page and returns its
// bytes and page count.
func readPDF(path string) ([]byte, int, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, 0, fmt.Errorf("%w: %s is not a .pdf file", ErrInvalidInput, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%w: %s is a directory", ErrInvalidInput, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to get page count for %s: %v", ErrInvalidInput, path, err)
	}
	if pageCount < 1 {
		return nil, 0, fmt.Errorf("%w: %s has no pages", ErrInvalidInput, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, pageCount, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
