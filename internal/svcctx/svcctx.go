// Package svcctx builds the services a command needs and carries them
// through context.
package svcctx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/config"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/export"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/home"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/ocr"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/pipeline"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/prompts"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/prompts/extract"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/providers"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/skeleton"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Config    *config.Manager
	Registry  *providers.Registry
	Processor *pipeline.Processor
	Home      *home.Dir
	Logger    *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// ProcessorFrom extracts the document processor from context.
func ProcessorFrom(ctx context.Context) *pipeline.Processor {
	if s := ServicesFrom(ctx); s != nil {
		return s.Processor
	}
	return nil
}

// LoggerFrom extracts the logger from context, falling back to
// slog.Default().
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// ProcessorOptions adjust a processor built from config.
type ProcessorOptions struct {
	// OutputDir overrides output.dir when set.
	OutputDir string

	// Template overrides extraction.template when set.
	Template string
}

// NewProcessor wires a Processor from cfg over the providers in reg.
func NewProcessor(cfg *config.Config, reg *providers.Registry, h *home.Dir, opts ProcessorOptions, logger *slog.Logger) (*pipeline.Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	analyzer, err := reg.Analyzer()
	if err != nil {
		return nil, err
	}
	llm, err := reg.LLM()
	if err != nil {
		return nil, err
	}

	orch, err := ocr.New(ocr.Config{
		Analyzer:     analyzer,
		PollInterval: cfg.DocumentIntelligence.PollInterval,
		MaxAttempts:  cfg.DocumentIntelligence.MaxAttempts,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	inv, err := pipeline.NewInvoker(pipeline.InvokerConfig{
		Client:      llm,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	overrideDir := cfg.Prompts.OverrideDir
	if overrideDir == "" && h != nil {
		overrideDir = h.PromptsDir()
	}
	resolver := prompts.NewResolver(overrideDir, logger)
	extract.RegisterPrompts(resolver)

	templatePath := cfg.Extraction.Template
	if opts.Template != "" {
		templatePath = opts.Template
	}
	tmpl, err := skeleton.Load(templatePath)
	if err != nil {
		return nil, err
	}

	engine, err := pipeline.NewEngine(pipeline.EngineConfig{
		OCR:              orch,
		Invoker:          inv,
		Assembler:        extract.NewAssembler(resolver),
		Template:         tmpl,
		Rules:            cfg.Rules(),
		NormalizeNumbers: cfg.Extraction.NormalizeNumbers,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	var exporter *export.Exporter
	if cfg.Output.XLSX != "" {
		exporter = export.NewExporter(cfg.Output.XLSX, cfg.Output.XLSXKey, logger)
	}

	outputDir := cfg.Output.Dir
	if opts.OutputDir != "" {
		outputDir = opts.OutputDir
	}

	proc, err := pipeline.NewProcessor(pipeline.ProcessorConfig{
		Engine:      engine,
		OutputDir:   outputDir,
		RecordCalls: cfg.Output.RecordCalls,
		Exporter:    exporter,
		MaxWorkers:  cfg.Defaults.MaxWorkers,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create processor: %w", err)
	}
	return proc, nil
}
