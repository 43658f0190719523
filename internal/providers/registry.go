package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds the configured document analyzers and LLM clients by name.
// It is safe for concurrent use and can be reloaded when the config changes.
type Registry struct {
	mu         sync.RWMutex
	llmClients map[string]LLMClient
	analyzers  map[string]DocumentAnalyzer
	activeLLM  string
	logger     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		llmClients: make(map[string]LLMClient),
		analyzers:  make(map[string]DocumentAnalyzer),
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterLLM registers an LLM client by name. The first registered client
// becomes the active one.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	if r.activeLLM == "" {
		r.activeLLM = name
	}
	r.logger.Info("registered LLM client", "name", name)
}

// RegisterAnalyzer registers a document analyzer by name.
func (r *Registry) RegisterAnalyzer(name string, analyzer DocumentAnalyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzers[name] = analyzer
	r.logger.Info("registered document analyzer", "name", name)
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// GetAnalyzer returns a document analyzer by name.
func (r *Registry) GetAnalyzer(name string) (DocumentAnalyzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	analyzer, ok := r.analyzers[name]
	if !ok {
		return nil, fmt.Errorf("document analyzer not found: %s", name)
	}
	return analyzer, nil
}

// LLM returns the active LLM client.
func (r *Registry) LLM() (LLMClient, error) {
	r.mu.RLock()
	name := r.activeLLM
	r.mu.RUnlock()
	if name == "" {
		return nil, fmt.Errorf("no LLM backend configured")
	}
	return r.GetLLM(name)
}

// Analyzer returns the Document Intelligence analyzer.
func (r *Registry) Analyzer() (DocumentAnalyzer, error) {
	return r.GetAnalyzer(DocIntelName)
}

// ListLLM returns registered LLM client names in sorted order.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llmClients))
	for name := range r.llmClients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListAnalyzers returns registered analyzer names in sorted order.
func (r *Registry) ListAnalyzers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.analyzers))
	for name := range r.analyzers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegistryConfig carries resolved provider settings. Secrets are already
// expanded from the environment.
type RegistryConfig struct {
	DocIntel DocIntelConfig

	// Backend selects the LLM: "azure-openai" or "openai".
	Backend     string
	AzureOpenAI AzureOpenAIConfig
	OpenAI      OpenAIConfig
}

// NewLLMClient builds the single LLM backend named by cfg.Backend.
func NewLLMClient(cfg RegistryConfig) (LLMClient, error) {
	switch cfg.Backend {
	case AzureOpenAIName, "":
		if cfg.AzureOpenAI.Endpoint == "" || cfg.AzureOpenAI.APIKey == "" || cfg.AzureOpenAI.Deployment == "" {
			return nil, fmt.Errorf("azure-openai backend requires endpoint, api_key and deployment")
		}
		return NewAzureOpenAIClient(cfg.AzureOpenAI), nil
	case OpenAIName:
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai backend requires api_key")
		}
		return NewOpenAIClient(cfg.OpenAI), nil
	default:
		return nil, fmt.Errorf("unknown LLM backend %q (want %s or %s)", cfg.Backend, AzureOpenAIName, OpenAIName)
	}
}

// NewRegistryFromConfig creates a registry holding the Document Intelligence
// client and the selected LLM backend.
func NewRegistryFromConfig(cfg RegistryConfig) (*Registry, error) {
	r := NewRegistry()
	if cfg.DocIntel.Logger != nil {
		r.logger = cfg.DocIntel.Logger
	}
	if err := r.Reload(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload rebuilds every provider from cfg. On error the registry is left
// unchanged.
func (r *Registry) Reload(cfg RegistryConfig) error {
	if cfg.DocIntel.Endpoint == "" || cfg.DocIntel.APIKey == "" {
		return fmt.Errorf("document intelligence requires endpoint and api_key")
	}
	llm, err := NewLLMClient(cfg)
	if err != nil {
		return err
	}
	analyzer := NewDocIntelClient(cfg.DocIntel)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients = map[string]LLMClient{llm.Name(): llm}
	r.analyzers = map[string]DocumentAnalyzer{analyzer.Name(): analyzer}
	r.activeLLM = llm.Name()
	r.logger.Info("providers loaded", "analyzer", analyzer.Name(), "llm", llm.Name())
	return nil
}
