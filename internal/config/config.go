// Package config loads forge's own operating configuration - the engine's
// output directory, default parallelism, and watcher debounce - from
// .forge/config.json or .forge/config.yaml in the workspace root. This is
// distinct from any build script authored by a user; it only configures
// how the engine itself runs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds forge's operating configuration.
type Config struct {
	// OutDir is the root directory under which content-hash-namespaced
	// intermediate output directories are created. Defaults to "out".
	OutDir string `json:"out_dir" yaml:"out_dir"`

	// Jobs is the default scheduler parallelism bound. Defaults to
	// runtime.NumCPU() when zero.
	Jobs int `json:"jobs" yaml:"jobs"`

	// Watch holds source-update feed settings.
	Watch WatchConfig `json:"watch" yaml:"watch"`

	// Logging mirrors the logging package's on-disk config shape so a
	// single file can hold both engine and logging settings.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// WatchConfig configures the filesystem-watching source-update feed.
type WatchConfig struct {
	// Debounce coalesces rapid-fire filesystem events for the same path.
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// LoggingConfig mirrors logging.loggingConfig's on-disk shape.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode" yaml:"debug_mode"`
	Level      string          `json:"level" yaml:"level"`
	Categories map[string]bool `json:"categories" yaml:"categories"`
	JSONFormat bool            `json:"json_format" yaml:"json_format"`
}

// Default returns a Config populated with sane defaults.
func Default() *Config {
	return &Config{
		OutDir: "out",
		Jobs:   0,
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads .forge/config.json (preferred) or .forge/config.yaml from the
// workspace root, merged over Default(). A missing config file is not an
// error - the engine runs with defaults.
func Load(workspaceDir string) (*Config, error) {
	cfg := Default()

	jsonPath := filepath.Join(workspaceDir, ".forge", "config.json")
	if data, err := os.ReadFile(jsonPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", jsonPath, err)
		}
		return cfg, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", jsonPath, err)
	}

	yamlPath := filepath.Join(workspaceDir, ".forge", "config.yaml")
	if data, err := os.ReadFile(yamlPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", yamlPath, err)
		}
		return cfg, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", yamlPath, err)
	}

	return cfg, nil
}
