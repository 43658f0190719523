package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/config"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/home"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/output"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/providers"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/svcctx"
	"github.com/Unigalactix/GasOps-DI-JSON/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
	envFile      string
)

var rootCmd = &cobra.Command{
	Use:   "gasops",
	Short: "Extract structured records from mill test report PDFs",
	Long: `gasops turns mill test report (MTR) PDFs into JSON records.

Each document goes through:
  - Azure Document Intelligence layout analysis (submit, then poll)
  - Text flattening and prompt assembly against a blanked JSON template
  - One chat completion on Azure OpenAI or OpenAI
  - Tolerant recovery of the JSON record from the model's answer

Records are written next to each PDF (or to --out-dir) and can be upserted
into a spreadsheet keyed by heat number.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.gasops/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "gasops home directory (default: ~/.gasops)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVar(
		&envFile, "env-file", "", "KEY=VALUE file loaded before the config (default: ./.env and ~/.gasops/.env)",
	)

	// Set output format, logging and environment before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		output.SetFormat(format)

		logger, err := newLogger(logLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		return config.LoadEnvFiles(envFile, ".env", h.EnvPath())
	}

	rootCmd.AddCommand(versionCmd)
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

// loadServices loads and validates the config, then builds the providers
// and the document processor.
func loadServices(opts svcctx.ProcessorOptions, useHomeOutput bool) (*svcctx.Services, error) {
	logger := slog.Default()

	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, err
	}
	mgr.SetLogger(logger)
	cfg := mgr.Get()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration (see 'gasops config init'):\n%w", err)
	}

	rc := cfg.ToRegistryConfig()
	rc.DocIntel.Logger = logger
	reg, err := providers.NewRegistryFromConfig(rc)
	if err != nil {
		return nil, err
	}

	if useHomeOutput && opts.OutputDir == "" {
		if err := h.EnsureExists(); err != nil {
			return nil, err
		}
		opts.OutputDir = h.OutputsDir()
	}

	proc, err := svcctx.NewProcessor(cfg, reg, h, opts, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("services ready",
		"config", mgr.ConfigFileUsed(),
		"analyzer", reg.ListAnalyzers(),
		"llm", reg.ListLLM(),
		"run_id", proc.RunID())

	return &svcctx.Services{
		Config:    mgr,
		Registry:  reg,
		Processor: proc,
		Home:      h,
		Logger:    logger,
	}, nil
}

// processFlags are shared by the commands that run documents.
type processFlags struct {
	outDir     string
	template   string
	homeOutput bool
}

func (f *processFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.outDir, "out-dir", "", "directory for outputs (default: output.dir, else next to each PDF)")
	cmd.Flags().StringVar(&f.template, "template", "", "JSON template file (default: extraction.template, else built-in)")
	cmd.Flags().BoolVar(&f.homeOutput, "home-output", false, "write outputs under ~/.gasops/outputs")
}

func (f *processFlags) services() (*svcctx.Services, error) {
	return loadServices(svcctx.ProcessorOptions{OutputDir: f.outDir, Template: f.template}, f.homeOutput)
}
