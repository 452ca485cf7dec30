/*
Package config handles YAML configuration loading, validation, and
CLI flag merging for seekpipe.

Configuration is resolved in this order (highest priority first):
 1. CLI flags (explicitly passed)
 2. Config file values
 3. Built-in defaults
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ushineko/seekpipe/internal/backing"
	"github.com/ushineko/seekpipe/internal/journal"
	"github.com/ushineko/seekpipe/internal/transfer"
	"gopkg.in/yaml.v3"
)

// maxBufferSize bounds the copy buffer.
const maxBufferSize = 64 << 20

// Config is the top-level configuration for seekpipe.
type Config struct {
	Prefix     string  `yaml:"prefix"`
	Strategy   string  `yaml:"strategy"`
	BufferSize int     `yaml:"buffer_size"`
	LogDir     string  `yaml:"log_dir"`
	Verbose    bool    `yaml:"verbose"`
	Journal    Journal `yaml:"journal"`
}

// Journal holds invocation journal configuration.
type Journal struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// Retention is how long entries are kept. Zero keeps them forever.
	Retention Duration `yaml:"retention"`
}

// Default returns a Config populated with built-in defaults.
func Default() Config {
	return Config{
		Prefix:     backing.DefaultPrefix,
		Strategy:   string(transfer.StrategyAuto),
		BufferSize: transfer.DefaultBufferSize,
		LogDir:     "",
		Verbose:    false,
		Journal: Journal{
			Enabled:   false,
			Retention: Duration{30 * 24 * time.Hour},
		},
	}
}

// Load reads a config file from disk and parses it. If path is empty, it
// looks for config.yml or config.yaml in the seekpipe directory under the
// user's config directory. Returns the parsed config and the path that was
// loaded (empty if none found).
func Load(path string) (Config, string, error) {
	cfg := Default()

	if path == "" {
		path = discover()
		if path == "" {
			return cfg, "", nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, path, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, path, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, path, nil
}

// discover searches the user config directory for a config file.
func discover() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"config.yml", "config.yaml"} {
		p := filepath.Join(dir, "seekpipe", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// CLIOverrides holds values from CLI flags that should override config file values.
// A nil value means the flag was not explicitly set.
type CLIOverrides struct {
	Prefix     *string
	Strategy   *string
	BufferSize *int
	LogDir     *string
	Verbose    *bool
	Journal    *bool
}

// Merge applies CLI flag overrides to a loaded config. Only explicitly-set
// flags override config file values.
func (c *Config) Merge(o CLIOverrides) {
	if o.Prefix != nil {
		c.Prefix = *o.Prefix
	}
	if o.Strategy != nil {
		c.Strategy = *o.Strategy
	}
	if o.BufferSize != nil {
		c.BufferSize = *o.BufferSize
	}
	if o.LogDir != nil {
		c.LogDir = *o.LogDir
	}
	if o.Verbose != nil {
		c.Verbose = *o.Verbose
	}
	if o.Journal != nil {
		c.Journal.Enabled = *o.Journal
	}
}

// Validate checks the config for invalid values and returns an error
// describing all problems found.
func (c *Config) Validate() error {
	var errs []string

	if c.Prefix == "" {
		errs = append(errs, "prefix: must not be empty")
	} else if strings.ContainsRune(c.Prefix, 0) {
		errs = append(errs, fmt.Sprintf("prefix: contains a NUL byte: %q", c.Prefix))
	}

	if _, err := transfer.ParseStrategy(c.Strategy); err != nil {
		errs = append(errs, fmt.Sprintf("strategy: %v", err))
	}

	if c.BufferSize <= 0 || c.BufferSize > maxBufferSize {
		errs = append(errs, fmt.Sprintf("buffer_size: must be between 1 and %d, got %d", maxBufferSize, c.BufferSize))
	}

	if c.Journal.Retention.Duration < 0 {
		errs = append(errs, fmt.Sprintf("journal.retention: must not be negative, got %s", c.Journal.Retention))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return nil
}

// JournalPath returns the configured journal path or the default location.
func (c *Config) JournalPath() (string, error) {
	if c.Journal.Path != "" {
		return c.Journal.Path, nil
	}
	p, err := journal.DefaultPath()
	if err != nil {
		return "", fmt.Errorf("locate journal: %w", err)
	}
	return p, nil
}

// Dump serializes the config to YAML.
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}
