package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// healthFile is the name of the daemon health file in the data directory.
const healthFile = "health.json"

// Health status values.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
	healthStopped  = "stopped"
)

// HealthStatus is the daemon state written to health.json. Foreground
// commands read it to report whether sampling is current.
type HealthStatus struct {
	Status    string    `json:"status"`
	PID       int       `json:"pid"`
	Started   time.Time `json:"started"`
	LastTick  time.Time `json:"last_tick,omitempty"`
	Interval  string    `json:"interval"`
	Ticks     uint64    `json:"ticks"`
	Failures  uint64    `json:"failures"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// writeHealthFile writes status to {dir}/health.json through a temp file and
// rename so readers never see a partial document.
func writeHealthFile(dir string, status HealthStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal health status: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-health-*")
	if err != nil {
		return fmt.Errorf("create temp health file: %w", err)
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write health file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close health file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod health file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, healthFile)); err != nil {
		return fmt.Errorf("rename health file: %w", err)
	}
	success = true
	return nil
}

// readHealthFile reads the health status from the data directory.
func readHealthFile(dir string) (*HealthStatus, error) {
	data, err := os.ReadFile(filepath.Join(dir, healthFile))
	if err != nil {
		return nil, fmt.Errorf("read health file: %w", err)
	}

	var status HealthStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshal health file: %w", err)
	}
	return &status, nil
}

// staleAfter is how long after the last tick sampling counts as stalled:
// two intervals plus the retry wait.
func staleAfter(interval, retry time.Duration) time.Duration {
	return 2*interval + retry
}

// describeHealth summarizes status for the status command. fresh is false
// when the daemon has stopped or its last tick is older than threshold.
func describeHealth(status *HealthStatus, now time.Time, threshold time.Duration) (line string, fresh bool) {
	if status.Status == healthStopped {
		return fmt.Sprintf("stopped (last update %s)", status.UpdatedAt.Format(time.RFC3339)), false
	}
	if status.LastTick.IsZero() {
		return fmt.Sprintf("%s, no completed tick yet (pid %d)", status.Status, status.PID), false
	}

	age := now.Sub(status.LastTick)
	fresh = age <= threshold
	line = fmt.Sprintf("%s, last tick %s ago, %d ticks, %d failures (pid %d)",
		status.Status, age.Round(time.Second), status.Ticks, status.Failures, status.PID)
	if !fresh {
		line += fmt.Sprintf(", stale beyond %s", threshold)
	}
	if status.LastError != "" {
		line += "\n  last error: " + status.LastError
	}
	return line, fresh
}
