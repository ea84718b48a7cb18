package config

// MemoryConfig configures the Memory Store of SPEC_FULL.md §4.6.
type MemoryConfig struct {
	// Path is the sqlite database file. Empty uses an in-memory store
	// (memory.NewInMemoryStore), useful for tests and ephemeral runs.
	Path string `yaml:"path"`
}

func applyMemoryDefaults(cfg *MemoryConfig) {}

func validateMemory(cfg *MemoryConfig) []string { return nil }
