// Package render turns metric history into PNG charts, summary statistics
// and terminal widgets.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/autosysmon/collectors"
	"gitlab.com/tinyland/lab/autosysmon/logstore"
)

// Stats holds aggregate values for one metric.
type Stats struct {
	Average float64 `json:"average"`
	Maximum float64 `json:"maximum"`
	Minimum float64 `json:"minimum"`
}

// Summary aggregates a window of metric records.
type Summary struct {
	Days       int       `json:"days"`
	DataPoints int       `json:"data_points"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`

	CPU    Stats `json:"cpu"`
	Memory Stats `json:"memory"`
	Disk   Stats `json:"disk"`

	// Threshold is the CPU alert threshold and CPUAbove the number of
	// samples strictly above it.
	Threshold float64 `json:"threshold"`
	CPUAbove  int     `json:"cpu_above"`
}

// Summarize computes statistics over records, which must be in ascending
// timestamp order. Returns nil for an empty slice.
func Summarize(records []collectors.MetricRecord, days int, threshold float64) *Summary {
	if len(records) == 0 {
		return nil
	}
	s := &Summary{
		Days:       days,
		DataPoints: len(records),
		From:       records[0].Timestamp,
		To:         records[len(records)-1].Timestamp,
		Threshold:  threshold,
	}

	var cpu, mem, disk accumulator
	for _, r := range records {
		cpu.add(r.CPUPercent)
		mem.add(r.MemoryPercent)
		disk.add(r.DiskPercent)
		if r.CPUPercent > threshold {
			s.CPUAbove++
		}
	}
	s.CPU = cpu.stats()
	s.Memory = mem.stats()
	s.Disk = disk.stats()
	return s
}

type accumulator struct {
	n        int
	sum      float64
	min, max float64
}

func (a *accumulator) add(v float64) {
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if a.n == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.n++
}

func (a *accumulator) stats() Stats {
	if a.n == 0 {
		return Stats{}
	}
	return Stats{Average: a.sum / float64(a.n), Maximum: a.max, Minimum: a.min}
}

// WriteSummary prints s in the plain report layout. A nil summary prints the
// no-data notice.
func WriteSummary(w io.Writer, s *Summary) error {
	var b strings.Builder
	if s == nil {
		b.WriteString("No data available for analysis\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "\n=== Summary Statistics - Last %d Day(s) ===\n", s.Days)
	fmt.Fprintf(&b, "Data Points: %d\n", s.DataPoints)
	fmt.Fprintf(&b, "Time Period: %s to %s\n\n",
		s.From.Format(logstore.TimestampLayout), s.To.Format(logstore.TimestampLayout))

	writeStats(&b, "CPU Usage", s.CPU)
	fmt.Fprintf(&b, "  Above %.0f%%: %d times\n\n", s.Threshold, s.CPUAbove)
	writeStats(&b, "RAM Usage", s.Memory)
	b.WriteString("\n")
	writeStats(&b, "Disk Usage", s.Disk)
	b.WriteString(strings.Repeat("=", 50) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeStats(b *strings.Builder, title string, st Stats) {
	fmt.Fprintf(b, "%s:\n", title)
	fmt.Fprintf(b, "  Average: %.1f%%\n", st.Average)
	fmt.Fprintf(b, "  Maximum: %.1f%%\n", st.Maximum)
	fmt.Fprintf(b, "  Minimum: %.1f%%\n", st.Minimum)
}
