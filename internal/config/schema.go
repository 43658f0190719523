package config

import (
	"time"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/export"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/pipeline"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/prompts/extract"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/providers"
)

// Config holds gasops configuration.
// Stored at: {home}/config.yaml
type Config struct {
	DocumentIntelligence DocIntelCfg   `mapstructure:"document_intelligence" yaml:"document_intelligence"`
	LLM                  LLMCfg        `mapstructure:"llm" yaml:"llm"`
	Extraction           ExtractionCfg `mapstructure:"extraction" yaml:"extraction"`
	Prompts              PromptsCfg    `mapstructure:"prompts" yaml:"prompts"`
	Output               OutputCfg     `mapstructure:"output" yaml:"output"`
	Defaults             DefaultsCfg   `mapstructure:"defaults" yaml:"defaults"`
}

// DocIntelCfg configures Azure Document Intelligence.
type DocIntelCfg struct {
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"` // Supports ${ENV_VAR} syntax
	APIKey       string        `mapstructure:"api_key" yaml:"api_key"`   // Supports ${ENV_VAR} syntax
	ModelID      string        `mapstructure:"model_id" yaml:"model_id"`
	APIVersion   string        `mapstructure:"api_version" yaml:"api_version"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RateLimit    float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second
	Retries      int           `mapstructure:"retries" yaml:"retries"`
}

// LLMCfg selects and configures the model backend.
type LLMCfg struct {
	Backend     string         `mapstructure:"backend" yaml:"backend"` // "azure-openai" or "openai"
	AzureOpenAI AzureOpenAICfg `mapstructure:"azure_openai" yaml:"azure_openai"`
	OpenAI      OpenAICfg      `mapstructure:"openai" yaml:"openai"`
	Temperature float64        `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int            `mapstructure:"max_tokens" yaml:"max_tokens"`
	Retries     int            `mapstructure:"retries" yaml:"retries"`
	Timeout     time.Duration  `mapstructure:"timeout" yaml:"timeout"`
}

// AzureOpenAICfg configures the Azure OpenAI backend.
type AzureOpenAICfg struct {
	Endpoint   string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	Deployment string `mapstructure:"deployment" yaml:"deployment"`
	APIVersion string `mapstructure:"api_version" yaml:"api_version"`
}

// OpenAICfg configures the public OpenAI backend.
type OpenAICfg struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	Model  string `mapstructure:"model" yaml:"model"`
}

// ExtractionCfg controls the template and prompt rules.
type ExtractionCfg struct {
	Template         string `mapstructure:"template" yaml:"template"` // Empty uses the embedded MTR template
	MaxTextChars     int    `mapstructure:"max_text_chars" yaml:"max_text_chars"`
	DateFormat       string `mapstructure:"date_format" yaml:"date_format"`
	NoteField        string `mapstructure:"note_field" yaml:"note_field"`
	NormalizeNumbers bool   `mapstructure:"normalize_numbers" yaml:"normalize_numbers"`
}

// PromptsCfg points at prompt overrides.
type PromptsCfg struct {
	OverrideDir string `mapstructure:"override_dir" yaml:"override_dir"`
}

// OutputCfg controls where results go.
type OutputCfg struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`   // Empty writes next to each PDF
	XLSX        string `mapstructure:"xlsx" yaml:"xlsx"` // Empty disables the spreadsheet
	XLSXKey     string `mapstructure:"xlsx_key" yaml:"xlsx_key"`
	RecordCalls bool   `mapstructure:"record_calls" yaml:"record_calls"`
}

// DefaultsCfg holds run defaults.
type DefaultsCfg struct {
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	rules := extract.DefaultRules()
	return &Config{
		DocumentIntelligence: DocIntelCfg{
			Endpoint:     "${AZURE_DI_ENDPOINT}",
			APIKey:       "${AZURE_DI_KEY}",
			ModelID:      providers.DocIntelDefaultModelID,
			APIVersion:   providers.DocIntelDefaultAPIVersion,
			PollInterval: time.Second,
			MaxAttempts:  60,
			RateLimit:    15,
			Retries:      2,
		},
		LLM: LLMCfg{
			Backend: providers.AzureOpenAIName,
			AzureOpenAI: AzureOpenAICfg{
				Endpoint:   "${AZURE_OPENAI_ENDPOINT}",
				APIKey:     "${AZURE_OPENAI_KEY}",
				Deployment: "${AZURE_OPENAI_DEPLOYMENT}",
				APIVersion: providers.AzureOpenAIDefaultAPIVersion,
			},
			OpenAI: OpenAICfg{
				APIKey: "${OPENAI_API_KEY}",
				Model:  providers.OpenAIDefaultModel,
			},
			Temperature: 0,
			MaxTokens:   pipeline.DefaultMaxTokens,
			Retries:     2,
			Timeout:     120 * time.Second,
		},
		Extraction: ExtractionCfg{
			MaxTextChars:     rules.MaxTextChars,
			DateFormat:       rules.DateFormat,
			NoteField:        rules.NoteField,
			NormalizeNumbers: true,
		},
		Output: OutputCfg{
			XLSXKey:     export.DefaultKey,
			RecordCalls: true,
		},
		Defaults: DefaultsCfg{
			MaxWorkers: pipeline.DefaultMaxWorkers,
		},
	}
}

// Rules returns the prompt rules from the extraction section.
func (c *Config) Rules() extract.Rules {
	return extract.Rules{
		DateFormat:   c.Extraction.DateFormat,
		NoteField:    c.Extraction.NoteField,
		MaxTextChars: c.Extraction.MaxTextChars,
	}
}
