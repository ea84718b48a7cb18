package config

import "time"

// LifecycleConfig configures the Lifecycle Supervisor of SPEC_FULL.md §4.7.
type LifecycleConfig struct {
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

func applyLifecycleDefaults(cfg *LifecycleConfig) {
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = 5 * time.Second
	}
}

func validateLifecycle(cfg *LifecycleConfig) []string {
	var issues []string
	if cfg.HealthCheckInterval <= 0 {
		issues = append(issues, "lifecycle.health_check_interval must be > 0")
	}
	return issues
}
