// Package config loads the engine settings file — ambient knobs that are
// not part of the placeholder context (spec §6's "Engine project
// configuration file" is handled separately, by internal/placeholder and
// internal/command; this file governs log level/categories, default
// operation timeout, extra allow-list entries, and the SQLite busy
// timeout, per SPEC_FULL.md's AMBIENT STACK "Configuration" section).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings is the top-level shape of remake.settings.yaml.
type Settings struct {
	Logging LoggingConfig `yaml:"logging"`

	// DefaultTimeoutMS is loaded from the settings file but no other
	// package reads it: run_process falls back to a fixed 10-minute
	// timeout (spec §5: "There is no global per-operation timeout").
	DefaultTimeoutMS int `yaml:"default_timeout_ms"`

	// AllowedExecutables augments the policy package's built-in allow-list
	// (spec §4.7).
	AllowedExecutables []string `yaml:"allowed_executables"`

	// SQLiteBusyTimeoutMS is loaded from the settings file but no other
	// package reads it: internal/sdk/sqlitehost always opens databases
	// with busy_timeout(5000).
	SQLiteBusyTimeoutMS int `yaml:"sqlite_busy_timeout_ms"`
}

// LoggingConfig configures internal/logging (spec is silent on logging;
// carried ambient stack per SPEC_FULL.md).
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns the settings used when no settings file exists.
func Default() *Settings {
	return &Settings{
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
		DefaultTimeoutMS:    0,
		SQLiteBusyTimeoutMS: 5000,
	}
}

// Load reads a YAML settings file, falling back to Default() when the
// file does not exist. A present-but-malformed file is an error.
func Load(path string) (*Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return s, nil
}

// Save writes s as YAML to path, creating parent directories as needed.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
