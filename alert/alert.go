// Package alert evaluates threshold rules against metric samples and records
// an AlertRecord for every breach.
package alert

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gitlab.com/tinyland/lab/autosysmon/collectors"
	"gitlab.com/tinyland/lab/autosysmon/logstore"
)

// DefaultCPUThreshold is the CPU percentage above which an alert is raised.
const DefaultCPUThreshold = 80.0

// Config holds the rule thresholds. A threshold of 0 disables its rule.
type Config struct {
	CPUThreshold    float64 // Default: 80.0
	MemoryThreshold float64 // Default: 0 (disabled)
	DiskThreshold   float64 // Default: 0 (disabled)
}

// DefaultConfig returns the CPU-only rule set.
func DefaultConfig() Config {
	return Config{CPUThreshold: DefaultCPUThreshold}
}

// Appender persists alert records. *logstore.Store satisfies it.
type Appender interface {
	AppendAlert(a logstore.AlertRecord) error
}

// rule is one threshold check.
type rule struct {
	label     string // "CPU", "RAM", "DISK"
	threshold float64
	value     func(r *collectors.MetricRecord) float64
}

// Sink checks samples and appends alerts. There is no hysteresis: every
// breaching sample produces its own alert.
type Sink struct {
	rules  []rule
	store  Appender
	logger *slog.Logger
}

// NewSink creates a sink that writes through store.
func NewSink(cfg Config, store Appender, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var rules []rule
	if cfg.CPUThreshold > 0 {
		rules = append(rules, rule{"CPU", cfg.CPUThreshold, func(r *collectors.MetricRecord) float64 { return r.CPUPercent }})
	}
	if cfg.MemoryThreshold > 0 {
		rules = append(rules, rule{"RAM", cfg.MemoryThreshold, func(r *collectors.MetricRecord) float64 { return r.MemoryPercent }})
	}
	if cfg.DiskThreshold > 0 {
		rules = append(rules, rule{"DISK", cfg.DiskThreshold, func(r *collectors.MetricRecord) float64 { return r.DiskPercent }})
	}
	return &Sink{rules: rules, store: store, logger: logger}
}

// Evaluate returns the alerts a sample would raise without persisting them.
// A nil record raises nothing.
func (s *Sink) Evaluate(r *collectors.MetricRecord) []logstore.AlertRecord {
	if r == nil {
		return nil
	}
	var alerts []logstore.AlertRecord
	for _, ru := range s.rules {
		v := ru.value(r)
		if v <= ru.threshold {
			continue
		}
		alerts = append(alerts, logstore.AlertRecord{
			Timestamp: r.Timestamp,
			Message:   Message(ru.label, v, r),
		})
	}
	return alerts
}

// Check evaluates r and appends every resulting alert. The returned slice
// holds the alerts raised, including any whose append failed; the error
// joins all append failures.
func (s *Sink) Check(r *collectors.MetricRecord) ([]logstore.AlertRecord, error) {
	alerts := s.Evaluate(r)
	var errs []error
	for _, a := range alerts {
		if err := s.store.AppendAlert(a); err != nil {
			errs = append(errs, fmt.Errorf("alert: append: %w", err))
			continue
		}
		s.logger.Warn(a.Message)
	}
	return alerts, errors.Join(errs...)
}

// Message formats the alert text for a breach of the labelled metric:
//
//	HIGH CPU USAGE ALERT: 85.0% at 2024-01-01 10:01:00
func Message(label string, value float64, r *collectors.MetricRecord) string {
	return fmt.Sprintf("HIGH %s USAGE ALERT: %.1f%% at %s",
		label, value, r.Timestamp.Format(logstore.TimestampLayout))
}
