// Package config provides configuration parsing for autosysmon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvDataDir  = "AUTOSYSMON_DATA_DIR"
	EnvLogLevel = "AUTOSYSMON_LOG_LEVEL"
	EnvInterval = "AUTOSYSMON_INTERVAL"
)

// Config represents the autosysmon configuration.
type Config struct {
	// Storage holds log store location and rotation policy.
	Storage StorageConfig `yaml:"storage"`

	// Sampler holds the sampling cadence.
	Sampler SamplerConfig `yaml:"sampler"`

	// Alerts holds the alert rule thresholds.
	Alerts AlertsConfig `yaml:"alerts"`

	// Plot holds chart output settings.
	Plot PlotConfig `yaml:"plot"`

	// Log holds the process's own diagnostic logging settings.
	Log LogConfig `yaml:"log"`

	// Display holds terminal output settings.
	Display DisplayConfig `yaml:"display"`
}

// StorageConfig holds log store settings.
type StorageConfig struct {
	// Dir holds the metric and alert segments.
	Dir string `yaml:"dir"`
	// MaxSizeBytes rotates the active segment once it exceeds this size.
	MaxSizeBytes int64 `yaml:"max_size_bytes"`
	// MaxAge is a duration string (e.g. "72h", "30m") after which the active
	// segment is rotated regardless of size.
	MaxAge string `yaml:"max_age"`
	// Compress gzips archived segments.
	Compress bool `yaml:"compress"`
	// RetentionDays is the default age for the cleanup command.
	RetentionDays int `yaml:"retention_days"`
}

// SamplerConfig holds sampling settings.
type SamplerConfig struct {
	// Interval is a duration string between samples.
	Interval string `yaml:"interval"`
	// RetryInterval is the shorter wait after a failed tick.
	RetryInterval string `yaml:"retry_interval"`
	// CPUWindow is how long CPU busy time is measured per sample.
	CPUWindow string `yaml:"cpu_window"`
	// DiskPath is the filesystem whose usage is sampled.
	DiskPath string `yaml:"disk_path"`
}

// AlertsConfig holds alert thresholds in percent. Zero disables a rule.
type AlertsConfig struct {
	CPUThreshold    float64 `yaml:"cpu_threshold"`
	MemoryThreshold float64 `yaml:"memory_threshold"`
	DiskThreshold   float64 `yaml:"disk_threshold"`
}

// PlotConfig holds chart rendering settings.
type PlotConfig struct {
	// OutputDir receives the generated PNG files.
	OutputDir string `yaml:"output_dir"`
	// Width and Height are the chart size in pixels.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// Days is the default lookback for plot and report.
	Days int `yaml:"days"`
}

// LogConfig holds diagnostic logging settings.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`
	// File receives log output; empty means stderr.
	File string `yaml:"file"`
	// JSON switches to the JSON handler.
	JSON bool `yaml:"json"`
}

// DisplayConfig holds terminal output settings.
type DisplayConfig struct {
	// Color is "auto", "always" or "never".
	Color string `yaml:"color"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Dir:           DefaultDataDir(),
			MaxSizeBytes:  1 << 20,
			MaxAge:        "72h",
			Compress:      true,
			RetentionDays: 30,
		},
		Sampler: SamplerConfig{
			Interval:      "60s",
			RetryInterval: "5s",
			CPUWindow:     "1s",
			DiskPath:      "/",
		},
		Alerts: AlertsConfig{
			CPUThreshold: 80,
		},
		Plot: PlotConfig{
			OutputDir: ".",
			Width:     1200,
			Height:    900,
			Days:      7,
		},
		Log: LogConfig{
			Level: "info",
		},
		Display: DisplayConfig{
			Color: "auto",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/autosysmon/config.yaml, falling back to
// ~/.config. Returns "" if no home directory can be determined.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "autosysmon", "config.yaml")
}

// DefaultDataDir returns $XDG_DATA_HOME/autosysmon, falling back to
// ~/.local/share, then to a relative "autosysmon-data".
func DefaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "autosysmon-data"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "autosysmon")
}

// LoadConfig loads configuration from a YAML file, merging with defaults.
// A missing file yields the defaults. Environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides settings from the environment. lookup is normally
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.Storage.Dir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvInterval); ok && v != "" {
		// Accept bare seconds as well as duration strings.
		if n, err := strconv.Atoi(v); err == nil {
			v = strconv.Itoa(n) + "s"
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: %s: %w", EnvInterval, err)
		}
		c.Sampler.Interval = v
	}
	return nil
}

// Validate checks the configuration for required fields and logical consistency.
func (c *Config) Validate() error {
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if c.Storage.MaxSizeBytes <= 0 {
		return fmt.Errorf("storage.max_size_bytes must be positive, got %d", c.Storage.MaxSizeBytes)
	}
	if err := positiveDuration("storage.max_age", c.Storage.MaxAge); err != nil {
		return err
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("storage.retention_days must be non-negative, got %d", c.Storage.RetentionDays)
	}

	if err := positiveDuration("sampler.interval", c.Sampler.Interval); err != nil {
		return err
	}
	if err := positiveDuration("sampler.retry_interval", c.Sampler.RetryInterval); err != nil {
		return err
	}
	if err := positiveDuration("sampler.cpu_window", c.Sampler.CPUWindow); err != nil {
		return err
	}
	if c.Sampler.DiskPath == "" {
		return fmt.Errorf("sampler.disk_path is required")
	}

	for name, v := range map[string]float64{
		"alerts.cpu_threshold":    c.Alerts.CPUThreshold,
		"alerts.memory_threshold": c.Alerts.MemoryThreshold,
		"alerts.disk_threshold":   c.Alerts.DiskThreshold,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", name, v)
		}
	}

	if c.Plot.Width < 200 || c.Plot.Height < 200 {
		return fmt.Errorf("plot size must be at least 200x200, got %dx%d", c.Plot.Width, c.Plot.Height)
	}
	if c.Plot.Days <= 0 {
		return fmt.Errorf("plot.days must be positive, got %d", c.Plot.Days)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be 'debug', 'info', 'warn', or 'error', got %q", c.Log.Level)
	}

	switch c.Display.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("display.color must be 'auto', 'always', or 'never', got %q", c.Display.Color)
	}

	return nil
}

// MaxAgeDuration returns the parsed storage.max_age.
func (c *Config) MaxAgeDuration() time.Duration { return mustDuration(c.Storage.MaxAge) }

// IntervalDuration returns the parsed sampler.interval.
func (c *Config) IntervalDuration() time.Duration { return mustDuration(c.Sampler.Interval) }

// RetryIntervalDuration returns the parsed sampler.retry_interval.
func (c *Config) RetryIntervalDuration() time.Duration { return mustDuration(c.Sampler.RetryInterval) }

// CPUWindowDuration returns the parsed sampler.cpu_window.
func (c *Config) CPUWindowDuration() time.Duration { return mustDuration(c.Sampler.CPUWindow) }

// mustDuration parses a duration already checked by Validate; invalid input
// yields 0 so callers fall back to their own defaults.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func positiveDuration(field, s string) error {
	if s == "" {
		return fmt.Errorf("%s is required", field)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, s, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, s)
	}
	return nil
}

// SaveConfig saves configuration to a YAML file.
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
