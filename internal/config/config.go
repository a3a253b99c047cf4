// Package config provides configuration management for arrowlogctl,
// the CLI tool built on top of the storage, recordbuf, and notify
// packages. It has no bearing on the library packages
// themselves, which take their settings as explicit function arguments.
package config

import (
	"encoding/json"
	"os"
)

// Config holds process-local settings for the CLI tools.
type Config struct {
	// DataDir is the directory holding storage files.
	DataDir string `json:"data_dir"`

	// LogLevel controls charmbracelet/log verbosity: debug, info,
	// warn, or error.
	LogLevel string `json:"log_level"`

	// FlushOnCommit controls whether AppendTxn.Commit data-syncs
	// before publishing. Durable but slower when true.
	FlushOnCommit bool `json:"flush_on_commit"`

	// BufferCapacity is the initial byte capacity reserved by a
	// recordbuf.Buffer before it needs to grow.
	BufferCapacity int `json:"buffer_capacity"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir:        "data",
		LogLevel:       "info",
		FlushOnCommit:  true,
		BufferCapacity: 4096,
	}
}

// Load reads configuration from a JSON file at path, returning
// defaults overlaid with whatever the file specifies. A missing file
// is not an error: Load returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to path as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
