package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/providers"
)

// EnvPrefix prefixes every environment override, e.g. GASOPS_LLM_BACKEND.
const EnvPrefix = "GASOPS"

var envRefPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a new config manager and loads initial config. When
// cfgFile is empty, config.yaml is searched in searchPaths, then in the
// working directory and ~/.gasops.
func NewManager(cfgFile string, searchPaths ...string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		logger:    slog.Default(),
	}

	if err := cm.initViper(cfgFile, searchPaths); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// SetLogger sets the logger used for reload messages.
func (cm *Manager) SetLogger(logger *slog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string, searchPaths []string) error {
	for _, s := range settings(DefaultConfig()) {
		cm.v.SetDefault(s.key, s.value)
	}

	// Environment variables with GASOPS_ prefix
	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		for _, p := range searchPaths {
			cm.v.AddConfigPath(p)
		}
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.gasops")
	}

	// Try to read config file (not required)
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFileUsed returns the loaded config file, or "" when running on
// defaults and environment only.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. A file that fails to
// parse keeps the previous configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.logger.Warn("config reload failed", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		logger := cm.logger
		cm.mu.Unlock()

		logger.Info("config reloaded", "file", e.Name)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRefPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// LoadEnvFiles loads KEY=VALUE files into the process environment. Missing
// files are skipped and variables already set are left alone.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// Validate reports settings that would keep a run from starting. Secrets
// are checked after ${ENV_VAR} expansion.
func (c *Config) Validate() error {
	var errs []error
	missing := func(section, field, value string) {
		if strings.TrimSpace(ResolveEnvVars(value)) == "" {
			errs = append(errs, fmt.Errorf("%s.%s is not set", section, field))
		}
	}

	missing("document_intelligence", "endpoint", c.DocumentIntelligence.Endpoint)
	missing("document_intelligence", "api_key", c.DocumentIntelligence.APIKey)

	switch c.LLM.Backend {
	case providers.AzureOpenAIName, "":
		missing("llm.azure_openai", "endpoint", c.LLM.AzureOpenAI.Endpoint)
		missing("llm.azure_openai", "api_key", c.LLM.AzureOpenAI.APIKey)
		missing("llm.azure_openai", "deployment", c.LLM.AzureOpenAI.Deployment)
	case providers.OpenAIName:
		missing("llm.openai", "api_key", c.LLM.OpenAI.APIKey)
	default:
		errs = append(errs, fmt.Errorf("llm.backend %q is not one of %s, %s",
			c.LLM.Backend, providers.AzureOpenAIName, providers.OpenAIName))
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature %v is outside [0, 2]", c.LLM.Temperature))
	}
	if c.DocumentIntelligence.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("document_intelligence.max_attempts must not be negative"))
	}
	return errors.Join(errs...)
}

// ToRegistryConfig converts the config to a format suitable for
// providers.Registry. It resolves all ${ENV_VAR} references.
func (c *Config) ToRegistryConfig() providers.RegistryConfig {
	di := c.DocumentIntelligence
	llm := c.LLM
	return providers.RegistryConfig{
		DocIntel: providers.DocIntelConfig{
			Endpoint:   ResolveEnvVars(di.Endpoint),
			APIKey:     ResolveEnvVars(di.APIKey),
			ModelID:    di.ModelID,
			APIVersion: di.APIVersion,
			RateLimit:  di.RateLimit,
			Retries:    di.Retries,
		},
		Backend: llm.Backend,
		AzureOpenAI: providers.AzureOpenAIConfig{
			Endpoint:   ResolveEnvVars(llm.AzureOpenAI.Endpoint),
			APIKey:     ResolveEnvVars(llm.AzureOpenAI.APIKey),
			Deployment: ResolveEnvVars(llm.AzureOpenAI.Deployment),
			APIVersion: llm.AzureOpenAI.APIVersion,
			Timeout:    llm.Timeout,
			MaxRetries: llm.Retries,
		},
		OpenAI: providers.OpenAIConfig{
			APIKey:     ResolveEnvVars(llm.OpenAI.APIKey),
			Model:      llm.OpenAI.Model,
			Timeout:    llm.Timeout,
			MaxRetries: llm.Retries,
		},
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(toMapSlice(settings(DefaultConfig())))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# gasops configuration
# Secrets use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell or a .env file:
#   AZURE_DI_ENDPOINT AZURE_DI_KEY
#   AZURE_OPENAI_ENDPOINT AZURE_OPENAI_KEY AZURE_OPENAI_DEPLOYMENT (or OPENAI_API_KEY)
# Any key can be overridden with GASOPS_<SECTION>_<KEY>, e.g. GASOPS_LLM_BACKEND=openai

`)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	return os.WriteFile(path, append(header, data...), 0o644)
}

// setting is one dotted config key and its value.
type setting struct {
	key   string
	value any
}

// settings lists every leaf key of c in file order. Durations are written
// as strings so the YAML stays readable.
func settings(c *Config) []setting {
	di, llm, ex, out := c.DocumentIntelligence, c.LLM, c.Extraction, c.Output
	return []setting{
		{"document_intelligence.endpoint", di.Endpoint},
		{"document_intelligence.api_key", di.APIKey},
		{"document_intelligence.model_id", di.ModelID},
		{"document_intelligence.api_version", di.APIVersion},
		{"document_intelligence.poll_interval", di.PollInterval.String()},
		{"document_intelligence.max_attempts", di.MaxAttempts},
		{"document_intelligence.rate_limit", di.RateLimit},
		{"document_intelligence.retries", di.Retries},
		{"llm.backend", llm.Backend},
		{"llm.azure_openai.endpoint", llm.AzureOpenAI.Endpoint},
		{"llm.azure_openai.api_key", llm.AzureOpenAI.APIKey},
		{"llm.azure_openai.deployment", llm.AzureOpenAI.Deployment},
		{"llm.azure_openai.api_version", llm.AzureOpenAI.APIVersion},
		{"llm.openai.api_key", llm.OpenAI.APIKey},
		{"llm.openai.model", llm.OpenAI.Model},
		{"llm.temperature", llm.Temperature},
		{"llm.max_tokens", llm.MaxTokens},
		{"llm.retries", llm.Retries},
		{"llm.timeout", llm.Timeout.String()},
		{"extraction.template", ex.Template},
		{"extraction.max_text_chars", ex.MaxTextChars},
		{"extraction.date_format", ex.DateFormat},
		{"extraction.note_field", ex.NoteField},
		{"extraction.normalize_numbers", ex.NormalizeNumbers},
		{"prompts.override_dir", c.Prompts.OverrideDir},
		{"output.dir", out.Dir},
		{"output.xlsx", out.XLSX},
		{"output.xlsx_key", out.XLSXKey},
		{"output.record_calls", out.RecordCalls},
		{"defaults.max_workers", c.Defaults.MaxWorkers},
	}
}

// toMapSlice nests dotted settings into ordered YAML maps.
func toMapSlice(items []setting) yaml.MapSlice {
	var root yaml.MapSlice
	for _, s := range items {
		root = insert(root, strings.Split(s.key, "."), s.value)
	}
	return root
}

func insert(ms yaml.MapSlice, parts []string, value any) yaml.MapSlice {
	if len(parts) == 1 {
		return append(ms, yaml.MapItem{Key: parts[0], Value: value})
	}
	for i, item := range ms {
		if item.Key == parts[0] {
			child, _ := item.Value.(yaml.MapSlice)
			ms[i].Value = insert(child, parts[1:], value)
			return ms
		}
	}
	return append(ms, yaml.MapItem{Key: parts[0], Value: insert(nil, parts[1:], value)})
}
