// Package config loads and validates agentd's deployment configuration,
// grounded on the teacher's internal/config package (haasonsaas/nexus):
// one YAML document decoded with gopkg.in/yaml.v3's KnownFields(true),
// environment-variable expansion via os.ExpandEnv, env-var overrides for
// secrets, per-concern default application, and a single aggregated
// ConfigValidationError — split one file per concern the way the teacher
// splits config_server.go/config_auth.go/config_llm.go/etc.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Security   SecurityConfig   `yaml:"security"`
	AgentLoop  AgentLoopConfig  `yaml:"agent_loop"`
	Multiagent MultiagentConfig `yaml:"multiagent"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	Memory     MemoryConfig     `yaml:"memory"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Identity   IdentityConfig   `yaml:"identity"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Load reads, expands, decodes, defaults, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: %s must contain exactly one YAML document", path)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	applyGatewayDefaults(&cfg.Gateway)
	applyProvidersDefaults(&cfg.Providers)
	applySecurityDefaults(&cfg.Security)
	applyAgentLoopDefaults(&cfg.AgentLoop)
	applyMultiagentDefaults(&cfg.Multiagent)
	applySchedulerDefaults(&cfg.Scheduler)
	applyLifecycleDefaults(&cfg.Lifecycle)
	applyMemoryDefaults(&cfg.Memory)
	applySessionsDefaults(&cfg.Sessions)
	applyIdentityDefaults(&cfg.Identity)
	applyLoggingDefaults(&cfg.Logging)
}

// ConfigValidationError aggregates every validation issue found across all
// concerns, matching the teacher's single-error, multi-issue reporting.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string
	issues = append(issues, validateGateway(&cfg.Gateway)...)
	issues = append(issues, validateProviders(&cfg.Providers)...)
	issues = append(issues, validateSecurity(&cfg.Security)...)
	issues = append(issues, validateAgentLoop(&cfg.AgentLoop)...)
	issues = append(issues, validateMultiagent(&cfg.Multiagent)...)
	issues = append(issues, validateScheduler(&cfg.Scheduler)...)
	issues = append(issues, validateLifecycle(&cfg.Lifecycle)...)
	issues = append(issues, validateMemory(&cfg.Memory)...)
	issues = append(issues, validateSessions(&cfg.Sessions)...)
	issues = append(issues, validateLogging(&cfg.Logging)...)

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("AGENTD_BEARER_TOKEN")); v != "" {
		cfg.Gateway.BearerToken = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENTD_APPROVAL_TOKEN_SECRET")); v != "" {
		cfg.Gateway.ApprovalTokenSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.Providers.Anthropic.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.Providers.OpenAI.APIKey = v
	}
}
