package config

// AgentLoopConfig parameterizes the Agent Loop of SPEC_FULL.md §4.2.
type AgentLoopConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	MaxHistory    int     `yaml:"max_history"`
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
}

func applyAgentLoopDefaults(cfg *AgentLoopConfig) {
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 10
	}
	if cfg.MaxHistory == 0 {
		cfg.MaxHistory = 50
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
}

func validateAgentLoop(cfg *AgentLoopConfig) []string {
	var issues []string
	if cfg.MaxIterations < 0 {
		issues = append(issues, "agent_loop.max_iterations must be >= 0")
	}
	if cfg.MaxHistory < 0 {
		issues = append(issues, "agent_loop.max_history must be >= 0")
	}
	if cfg.MaxTokens < 0 {
		issues = append(issues, "agent_loop.max_tokens must be >= 0")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		issues = append(issues, "agent_loop.temperature must be between 0 and 2")
	}
	return issues
}
