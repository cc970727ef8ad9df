package logstore

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/autosysmon/collectors"
)

// TimestampLayout is the second-resolution timestamp written at the start of
// every line.
const TimestampLayout = "2006-01-02 15:04:05"

// fieldSep separates the fields of a serialized line.
const fieldSep = " | "

// AlertRecord is one alert line: a timestamp plus free text.
type AlertRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// FormatMetric serializes a metric record to a single line without the
// trailing newline:
//
//	2023-12-01 10:30:00 | CPU: 45.2% | RAM: 67.8% | Disk: 23.1%
func FormatMetric(r collectors.MetricRecord) string {
	return fmt.Sprintf("%s%sCPU: %.1f%%%sRAM: %.1f%%%sDisk: %.1f%%",
		r.Timestamp.Format(TimestampLayout), fieldSep,
		r.CPUPercent, fieldSep,
		r.MemoryPercent, fieldSep,
		r.DiskPercent,
	)
}

// ParseMetric decodes a line produced by FormatMetric. The timestamp is
// interpreted in loc. Lines that do not split into exactly four fields, or
// whose timestamp or percentages do not parse, return a KindParse error.
func ParseMetric(line string, loc *time.Location) (collectors.MetricRecord, error) {
	parts := strings.Split(strings.TrimSpace(line), fieldSep)
	if len(parts) != 4 {
		return collectors.MetricRecord{}, parseError("parse metric", fmt.Errorf("expected 4 fields, got %d", len(parts)))
	}

	ts, err := time.ParseInLocation(TimestampLayout, parts[0], loc)
	if err != nil {
		return collectors.MetricRecord{}, parseError("parse metric", err)
	}

	cpu, err := parsePercent(parts[1], "CPU")
	if err != nil {
		return collectors.MetricRecord{}, err
	}
	ram, err := parsePercent(parts[2], "RAM")
	if err != nil {
		return collectors.MetricRecord{}, err
	}
	disk, err := parsePercent(parts[3], "Disk")
	if err != nil {
		return collectors.MetricRecord{}, err
	}

	return collectors.MetricRecord{
		Timestamp:     ts,
		CPUPercent:    cpu,
		MemoryPercent: ram,
		DiskPercent:   disk,
	}, nil
}

// parsePercent extracts the number from a "<label>: 12.3%" field.
func parsePercent(field, label string) (float64, error) {
	v, ok := strings.CutPrefix(field, label+": ")
	if !ok {
		return 0, parseError("parse metric", fmt.Errorf("field %q: missing %s label", field, label))
	}
	v = strings.TrimSuffix(v, "%")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, parseError("parse metric", fmt.Errorf("field %q: %w", field, err))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, parseError("parse metric", fmt.Errorf("field %q: not a finite number", field))
	}
	return f, nil
}

// FormatAlert serializes an alert record to a single line. Line breaks in
// the message are folded to spaces so one record is always one line.
func FormatAlert(a AlertRecord) string {
	msg := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(a.Message)
	return a.Timestamp.Format(TimestampLayout) + fieldSep + msg
}

// ParseAlert decodes a line produced by FormatAlert. Everything after the
// first separator is the message, so messages may themselves contain " | ".
func ParseAlert(line string, loc *time.Location) (AlertRecord, error) {
	tsPart, msg, ok := strings.Cut(strings.TrimSpace(line), fieldSep)
	if !ok {
		return AlertRecord{}, parseError("parse alert", fmt.Errorf("missing field separator"))
	}
	ts, err := time.ParseInLocation(TimestampLayout, tsPart, loc)
	if err != nil {
		return AlertRecord{}, parseError("parse alert", err)
	}
	return AlertRecord{Timestamp: ts, Message: msg}, nil
}

// lineTimestamp parses only the leading timestamp of a line of either
// stream. Used for age checks.
func lineTimestamp(line string, loc *time.Location) (time.Time, bool) {
	if len(line) < len(TimestampLayout) {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(TimestampLayout, line[:len(TimestampLayout)], loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
