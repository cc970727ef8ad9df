package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gitlab.com/tinyland/lab/autosysmon/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildLoggerStderrText(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := buildLogger(config.LogConfig{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("buildLogger: %v", err)
	}
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "stream", "syslog")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record emitted at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "stream=syslog") {
		t.Errorf("output = %q, want text record", out)
	}
}

func TestBuildLoggerJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "autosysmon.log")
	var stderr bytes.Buffer

	logger, closer, err := buildLogger(config.LogConfig{Level: "debug", File: path, JSON: true}, &stderr)
	if err != nil {
		t.Fatalf("buildLogger: %v", err)
	}
	logger.Debug("tick complete", "ticks", 3)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if stderr.Len() != 0 {
		t.Errorf("stderr got output with a log file configured: %q", stderr.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, data)
	}
	if rec["msg"] != "tick complete" || rec["ticks"] != float64(3) {
		t.Errorf("record = %v", rec)
	}
}
