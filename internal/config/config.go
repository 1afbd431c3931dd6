// internal/config/config.go
package config

import (
	"encoding/json"
	"os"
)

// Config holds the changes-view settings read from .changeview.json in the
// workspace root. All fields are optional; zero values select defaults.
type Config struct {
	LogLevel string `json:"log_level"` // debug, info, warn, error

	// Flatten disables hierarchical grouping in the built tree.
	Flatten bool `json:"flatten"`

	// ManyFilesThreshold overrides the summarization cutoff for
	// unversioned/ignored sections when > 0.
	ManyFilesThreshold int `json:"many_files_threshold"`

	// StoreDir is where changelists and status snapshots are persisted,
	// relative to the workspace root.
	StoreDir string `json:"store_dir"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		StoreDir: ".changeview",
	}
}

// Load reads a config file, filling unset fields with defaults. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.StoreDir == "" {
		cfg.StoreDir = ".changeview"
	}
	return cfg, nil
}
