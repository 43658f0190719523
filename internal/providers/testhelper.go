package providers

import (
	"os"
)

// TestConfig holds live service settings loaded from environment variables,
// using the same variable names as the application's config file.
type TestConfig struct {
	DocIntelEndpoint string
	DocIntelKey      string

	AzureOpenAIEndpoint   string
	AzureOpenAIKey        string
	AzureOpenAIDeployment string

	OpenAIKey string
}

// LoadTestConfig loads provider settings from environment variables.
func LoadTestConfig() TestConfig {
	return TestConfig{
		DocIntelEndpoint:      os.Getenv("AZURE_DI_ENDPOINT"),
		DocIntelKey:           os.Getenv("AZURE_DI_KEY"),
		AzureOpenAIEndpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureOpenAIKey:        os.Getenv("AZURE_OPENAI_KEY"),
		AzureOpenAIDeployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
		OpenAIKey:             os.Getenv("OPENAI_API_KEY"),
	}
}

// HasDocIntel returns true if Document Intelligence is configured.
func (c TestConfig) HasDocIntel() bool {
	return c.DocIntelEndpoint != "" && c.DocIntelKey != ""
}

// HasAzureOpenAI returns true if an Azure OpenAI deployment is configured.
func (c TestConfig) HasAzureOpenAI() bool {
	return c.AzureOpenAIEndpoint != "" && c.AzureOpenAIKey != "" && c.AzureOpenAIDeployment != ""
}

// HasAnyLLM returns true if either LLM backend is configured.
func (c TestConfig) HasAnyLLM() bool {
	return c.HasAzureOpenAI() || c.OpenAIKey != ""
}

// ToRegistryConfig converts test config to a RegistryConfig, preferring
// Azure OpenAI when both backends are available.
func (c TestConfig) ToRegistryConfig() RegistryConfig {
	cfg := RegistryConfig{
		DocIntel: DocIntelConfig{
			Endpoint: c.DocIntelEndpoint,
			APIKey:   c.DocIntelKey,
			Retries:  2,
		},
		AzureOpenAI: AzureOpenAIConfig{
			Endpoint:   c.AzureOpenAIEndpoint,
			APIKey:     c.AzureOpenAIKey,
			Deployment: c.AzureOpenAIDeployment,
			MaxRetries: 2,
		},
		OpenAI: OpenAIConfig{
			APIKey:     c.OpenAIKey,
			MaxRetries: 2,
		},
		Backend: AzureOpenAIName,
	}
	if !c.HasAzureOpenAI() && c.OpenAIKey != "" {
		cfg.Backend = OpenAIName
	}
	return cfg
}
