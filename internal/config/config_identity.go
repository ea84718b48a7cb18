package config

// IdentityConfig configures the identity.FileProvider (SPEC_FULL.md §4.2+).
type IdentityConfig struct {
	Dir string `yaml:"dir"`
}

func applyIdentityDefaults(cfg *IdentityConfig) {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
}
