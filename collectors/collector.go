// Package collectors defines the sampling interface consumed by the
// autosysmon daemon and the metric record it produces. Concrete samplers live
// in subpackages (see collectors/sysmetrics).
package collectors

import (
	"context"
	"time"
)

// Sampler produces one MetricRecord per call.
//
// A nil record with a non-nil error means no data was available for this
// tick (a transient failure). Callers treat that as a no-op tick, never as a
// reason to stop sampling. The context bounds any measurement window the
// sampler needs (for example a CPU busy-time interval).
type Sampler interface {
	// Name returns the sampler's identifier, used in log output.
	Name() string

	// Sample takes one measurement of the host.
	Sample(ctx context.Context) (*MetricRecord, error)
}

// SamplerFunc adapts a plain function to the Sampler interface.
type SamplerFunc func(ctx context.Context) (*MetricRecord, error)

// Name returns "func".
func (f SamplerFunc) Name() string { return "func" }

// Sample calls f.
func (f SamplerFunc) Sample(ctx context.Context) (*MetricRecord, error) { return f(ctx) }

// MetricRecord is one host measurement. Records are immutable once produced.
// Percent fields are not clamped; values outside [0, 100] are preserved.
type MetricRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskPercent   float64   `json:"disk_percent"`
}
