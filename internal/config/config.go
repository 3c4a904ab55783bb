package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Log contains logger configuration.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Workflow contains worker-pool timing and sizing knobs.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Delivery contains engine-level defaults for planning and selection.
type Delivery struct {
	MaxTextLength    int    `toml:"max_text_length"`
	PreviewSeconds   int    `toml:"preview_seconds"`
	DocumentPreview  int    `toml:"document_preview_pages"`
	DefaultLanguage  string `toml:"default_language"`
	TextAlternatives bool   `toml:"text_alternatives"`
}

// Config is the root application configuration.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Log      Log      `toml:"log"`
	Workflow Workflow `toml:"workflow"`
	Delivery Delivery `toml:"delivery"`
}

// Default returns the baseline configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".local", "share", "lectern")
	return Config{
		Paths: Paths{
			DataDir: base,
			LogDir:  filepath.Join(base, "logs"),
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
		Workflow: Workflow{
			Workers:            4,
			QueuePollInterval:  5,
			HeartbeatInterval:  15,
			HeartbeatTimeout:   120,
			ErrorRetryInterval: 10,
		},
		Delivery: Delivery{
			MaxTextLength:    100000,
			PreviewSeconds:   30,
			DocumentPreview:  3,
			DefaultLanguage:  "en",
			TextAlternatives: true,
		},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "lectern.toml"
	}
	return filepath.Join(home, ".config", "lectern", "config.toml")
}

// Load reads the config file at path (or the default location when path is
// empty) merged over defaults. A missing file is not an error; defaults apply.
// It returns the effective config, the path consulted, and whether the file
// existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultPath()
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if err := cfg.Validate(); err != nil {
				return nil, resolved, false, err
			}
			return &cfg, resolved, false, nil
		}
		return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, resolved, true, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, resolved, true, err
	}
	return &cfg, resolved, true, nil
}

// Validate enforces internally consistent settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	if c.Delivery.MaxTextLength <= 0 {
		return errors.New("delivery.max_text_length must be positive")
	}
	if c.Delivery.PreviewSeconds <= 0 {
		return errors.New("delivery.preview_seconds must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format: unsupported value %q", c.Log.Format)
	}
	return nil
}

// EnsureDirectories creates the configured directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Sample returns the embedded annotated sample configuration.
func Sample() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to path. Unless overwrite is
// set, an existing file is left untouched and an error returned.
func WriteSample(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}
