package config

// SessionsConfig configures the Session Router's compaction policy
// (SPEC_FULL.md §4.1).
type SessionsConfig struct {
	// CompactionMaxMessages is the per-session message cap passed to
	// sessions.Router.Compact. 0 (unset) takes the default of 200.
	CompactionMaxMessages int `yaml:"compaction_max_messages"`
}

func applySessionsDefaults(cfg *SessionsConfig) {
	if cfg.CompactionMaxMessages == 0 {
		cfg.CompactionMaxMessages = 200
	}
}

func validateSessions(cfg *SessionsConfig) []string {
	var issues []string
	if cfg.CompactionMaxMessages < 0 {
		issues = append(issues, "sessions.compaction_max_messages must be >= 0")
	}
	return issues
}
