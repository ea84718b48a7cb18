package config

import (
	"fmt"
	"time"
)

// SchedulerConfig configures the Scheduler of SPEC_FULL.md §4.5.
type SchedulerConfig struct {
	// Timezone is an IANA location name (e.g. "America/Los_Angeles"),
	// used to evaluate cron expressions and ActiveHours windows. Empty
	// means UTC.
	Timezone string `yaml:"timezone"`
}

func applySchedulerDefaults(cfg *SchedulerConfig) {
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
}

func validateScheduler(cfg *SchedulerConfig) []string {
	var issues []string
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		issues = append(issues, fmt.Sprintf("scheduler.timezone %q is not a recognized IANA location: %v", cfg.Timezone, err))
	}
	return issues
}
