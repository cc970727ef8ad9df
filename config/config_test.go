package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Storage.MaxSizeBytes != 1<<20 {
		t.Errorf("expected MaxSizeBytes=1MiB, got %d", cfg.Storage.MaxSizeBytes)
	}
	if cfg.Storage.MaxAge != "72h" {
		t.Errorf("expected MaxAge=72h, got %s", cfg.Storage.MaxAge)
	}
	if !cfg.Storage.Compress {
		t.Error("expected Compress to be true")
	}
	if cfg.Storage.RetentionDays != 30 {
		t.Errorf("expected RetentionDays=30, got %d", cfg.Storage.RetentionDays)
	}
	if cfg.Sampler.Interval != "60s" {
		t.Errorf("expected Interval=60s, got %s", cfg.Sampler.Interval)
	}
	if cfg.Sampler.RetryInterval != "5s" {
		t.Errorf("expected RetryInterval=5s, got %s", cfg.Sampler.RetryInterval)
	}
	if cfg.Alerts.CPUThreshold != 80 {
		t.Errorf("expected CPUThreshold=80, got %v", cfg.Alerts.CPUThreshold)
	}
	if cfg.Alerts.MemoryThreshold != 0 || cfg.Alerts.DiskThreshold != 0 {
		t.Error("expected memory and disk rules disabled by default")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected Level=info, got %s", cfg.Log.Level)
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.IntervalDuration() != time.Minute {
		t.Errorf("IntervalDuration: got %v", cfg.IntervalDuration())
	}
	if cfg.RetryIntervalDuration() != 5*time.Second {
		t.Errorf("RetryIntervalDuration: got %v", cfg.RetryIntervalDuration())
	}
	if cfg.CPUWindowDuration() != time.Second {
		t.Errorf("CPUWindowDuration: got %v", cfg.CPUWindowDuration())
	}
	if cfg.MaxAgeDuration() != 72*time.Hour {
		t.Errorf("MaxAgeDuration: got %v", cfg.MaxAgeDuration())
	}

	cfg.Sampler.Interval = "bogus"
	if cfg.IntervalDuration() != 0 {
		t.Errorf("invalid duration should yield 0, got %v", cfg.IntervalDuration())
	}
}

func TestLoadConfigNonExistent(t *testing.T) {
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvInterval, "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Sampler.Interval != "60s" {
		t.Errorf("expected defaults, got Interval=%s", cfg.Sampler.Interval)
	}
}

func TestLoadConfigValidYAML(t *testing.T) {
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvInterval, "")

	content := `
storage:
  dir: /var/lib/autosysmon
  max_size_bytes: 2048
  max_age: 12h
  compress: false
sampler:
  interval: 30s
alerts:
  cpu_threshold: 90
  memory_threshold: 95
log:
  level: debug
  json: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Storage.Dir != "/var/lib/autosysmon" {
		t.Errorf("expected Dir=/var/lib/autosysmon, got %s", cfg.Storage.Dir)
	}
	if cfg.Storage.MaxSizeBytes != 2048 {
		t.Errorf("expected MaxSizeBytes=2048, got %d", cfg.Storage.MaxSizeBytes)
	}
	if cfg.MaxAgeDuration() != 12*time.Hour {
		t.Errorf("expected MaxAge=12h, got %v", cfg.MaxAgeDuration())
	}
	if cfg.Storage.Compress {
		t.Error("expected Compress=false")
	}
	if cfg.Sampler.Interval != "30s" {
		t.Errorf("expected Interval=30s, got %s", cfg.Sampler.Interval)
	}
	// Unset fields keep their defaults.
	if cfg.Sampler.RetryInterval != "5s" {
		t.Errorf("expected RetryInterval default, got %s", cfg.Sampler.RetryInterval)
	}
	if cfg.Alerts.CPUThreshold != 90 || cfg.Alerts.MemoryThreshold != 95 {
		t.Errorf("alerts: got %+v", cfg.Alerts)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.JSON {
		t.Errorf("log: got %+v", cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvDataDir:  "/tmp/asm",
		EnvLogLevel: "warn",
		EnvInterval: "15",
	}
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Storage.Dir != "/tmp/asm" {
		t.Errorf("Dir: got %s", cfg.Storage.Dir)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Level: got %s", cfg.Log.Level)
	}
	if cfg.IntervalDuration() != 15*time.Second {
		t.Errorf("Interval: got %v", cfg.IntervalDuration())
	}
}

func TestApplyEnvInvalidInterval(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == EnvInterval {
			return "soon", true
		}
		return "", false
	})
	if err == nil || !strings.Contains(err.Error(), EnvInterval) {
		t.Errorf("expected interval error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing dir", func(c *Config) { c.Storage.Dir = "" }, "storage.dir"},
		{"zero max size", func(c *Config) { c.Storage.MaxSizeBytes = 0 }, "storage.max_size_bytes"},
		{"bad max age", func(c *Config) { c.Storage.MaxAge = "3 days" }, "storage.max_age"},
		{"negative max age", func(c *Config) { c.Storage.MaxAge = "-1h" }, "storage.max_age"},
		{"negative retention", func(c *Config) { c.Storage.RetentionDays = -1 }, "storage.retention_days"},
		{"missing interval", func(c *Config) { c.Sampler.Interval = "" }, "sampler.interval"},
		{"bad retry", func(c *Config) { c.Sampler.RetryInterval = "x" }, "sampler.retry_interval"},
		{"zero cpu window", func(c *Config) { c.Sampler.CPUWindow = "0s" }, "sampler.cpu_window"},
		{"missing disk path", func(c *Config) { c.Sampler.DiskPath = "" }, "sampler.disk_path"},
		{"negative threshold", func(c *Config) { c.Alerts.DiskThreshold = -5 }, "alerts.disk_threshold"},
		{"tiny plot", func(c *Config) { c.Plot.Width = 50 }, "plot size"},
		{"zero days", func(c *Config) { c.Plot.Days = 0 }, "plot.days"},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad color", func(c *Config) { c.Display.Color = "rainbow" }, "display.color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndReloadConfig(t *testing.T) {
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvInterval, "")

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Sampler.Interval = "2m"
	cfg.Alerts.CPUThreshold = 70

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Sampler.Interval != "2m" {
		t.Errorf("expected Interval=2m, got %s", loaded.Sampler.Interval)
	}
	if loaded.Alerts.CPUThreshold != 70 {
		t.Errorf("expected CPUThreshold=70, got %v", loaded.Alerts.CPUThreshold)
	}
}

func TestXDGPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	if got := DefaultPath(); got != "/xdg/config/autosysmon/config.yaml" {
		t.Errorf("DefaultPath: got %s", got)
	}
	if got := DefaultDataDir(); got != "/xdg/data/autosysmon" {
		t.Errorf("DefaultDataDir: got %s", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if got := DefaultPath(); got != filepath.Join(home, ".config", "autosysmon", "config.yaml") {
		t.Errorf("DefaultPath fallback: got %s", got)
	}
}
