package config

import (
	"strings"
	"time"
)

// SecurityConfig configures the Security Policy of SPEC_FULL.md §4.4.
type SecurityConfig struct {
	Autonomy string `yaml:"autonomy"` // "read_only", "supervised", "full"

	WorkspaceRoot string   `yaml:"workspace_root"`
	BlockedDirs   []string `yaml:"blocked_dirs"`

	RateLimitWindowSecs int `yaml:"rate_limit_window_secs"`
	RateLimitMaxActions int `yaml:"rate_limit_max_actions"`

	// ApprovalTimeout is required: SPEC_FULL.md §9's Open Question
	// resolution rejects a zero value at load time rather than defaulting
	// to "wait forever".
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`
}

func applySecurityDefaults(cfg *SecurityConfig) {
	if cfg.Autonomy == "" {
		cfg.Autonomy = "supervised"
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = "."
	}
	if cfg.RateLimitWindowSecs == 0 {
		cfg.RateLimitWindowSecs = 60
	}
	if cfg.RateLimitMaxActions == 0 {
		cfg.RateLimitMaxActions = 30
	}
}

func validateSecurity(cfg *SecurityConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(cfg.Autonomy)) {
	case "read_only", "supervised", "full":
	default:
		issues = append(issues, `security.autonomy must be "read_only", "supervised", or "full"`)
	}
	if cfg.RateLimitWindowSecs < 0 {
		issues = append(issues, "security.rate_limit_window_secs must be >= 0")
	}
	if cfg.RateLimitMaxActions < 0 {
		issues = append(issues, "security.rate_limit_max_actions must be >= 0")
	}
	if cfg.ApprovalTimeout <= 0 {
		issues = append(issues, "security.approval_timeout is required and must be > 0 (no default: an explicit choice is forced per the approval-timeout design decision)")
	}
	return issues
}
