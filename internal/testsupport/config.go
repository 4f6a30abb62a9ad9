package testsupport

import (
	"path/filepath"
	"testing"

	"filesort/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Journal.Path = filepath.Join(base, "state", "journal.db")

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

// WithConcurrency overrides sort.concurrency on the test config.
func WithConcurrency(n int) ConfigOption {
	return func(c *config.Config) {
		c.Sort.Concurrency = n
	}
}

// WithJournalDisabled turns the run journal off.
func WithJournalDisabled() ConfigOption {
	return func(c *config.Config) {
		c.Journal.Enabled = false
	}
}
