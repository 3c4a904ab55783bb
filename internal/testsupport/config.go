package testsupport

import (
	"path/filepath"
	"testing"

	"lectern/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = base
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Workflow.Workers = 2
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 2

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithWorkers overrides the worker count on the test config.
func WithWorkers(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.Workers = n
	}
}

// WithDefaultLanguage overrides the delivery language on the test config.
func WithDefaultLanguage(lang string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Delivery.DefaultLanguage = lang
	}
}
