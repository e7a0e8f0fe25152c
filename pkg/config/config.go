// Package config loads and stores om2bms settings
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/james-see/om2bms/pkg/converter"
)

const (
	dirName  = "om2bms"
	fileName = "config.yaml"

	defaultTimeout = 30 * time.Second
)

// Config is the on-disk settings file
type Config struct {
	HitSound       bool   `yaml:"hitsound"`
	Background     bool   `yaml:"background"`
	OffsetMs       int    `yaml:"offset_ms"`
	OutputDir      string `yaml:"output_dir"`
	StrictRegistry bool   `yaml:"strict_registry"`
	Thumbnail      bool   `yaml:"thumbnail"`
	Workers        int    `yaml:"workers"`
	Timeout        string `yaml:"timeout"` // Per-beatmap budget in batch runs, e.g. "30s"
}

// Default returns the settings used when no file exists
func Default() Config {
	opts := converter.DefaultOptions()
	return Config{
		HitSound:       opts.HitSounds,
		Background:     opts.Background,
		StrictRegistry: opts.StrictRegistry,
		Workers:        4,
		Timeout:        defaultTimeout.String(),
	}
}

// Path returns the settings file location under the user config directory
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, dirName, fileName), nil
}

// Load reads the settings at path. A missing file yields Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating its directory
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Options returns the conversion options the settings describe
func (c Config) Options() converter.Options {
	return converter.Options{
		HitSounds:      c.HitSound,
		Background:     c.Background,
		OffsetMs:       c.OffsetMs,
		StrictRegistry: c.StrictRegistry,
		Thumbnail:      c.Thumbnail,
	}
}

// TimeoutDuration parses Timeout, falling back to the default on bad input
func (c Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d < 0 {
		return defaultTimeout
	}
	return d
}

// WorkerCount returns Workers, at least 1
func (c Config) WorkerCount() int {
	return max(c.Workers, 1)
}
