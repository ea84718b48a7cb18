package config

import "strings"

// ProvidersConfig configures the reference completion-provider adaptors.
type ProvidersConfig struct {
	Default   string                 `yaml:"default"`
	Anthropic ProviderEndpointConfig `yaml:"anthropic"`
	OpenAI    ProviderEndpointConfig `yaml:"openai"`
}

// ProviderEndpointConfig is one provider's connection settings.
type ProviderEndpointConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

func applyProvidersDefaults(cfg *ProvidersConfig) {
	if cfg.Default == "" {
		cfg.Default = "anthropic"
	}
}

func validateProviders(cfg *ProvidersConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(cfg.Default)) {
	case "anthropic", "openai":
	default:
		issues = append(issues, `providers.default must be "anthropic" or "openai"`)
	}
	if strings.EqualFold(cfg.Default, "anthropic") && strings.TrimSpace(cfg.Anthropic.APIKey) == "" {
		issues = append(issues, "providers.anthropic.api_key is required when providers.default is \"anthropic\"")
	}
	if strings.EqualFold(cfg.Default, "openai") && strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		issues = append(issues, "providers.openai.api_key is required when providers.default is \"openai\"")
	}
	return issues
}
