// Package sysmetrics samples host CPU, memory and disk utilisation through
// gopsutil and implements collectors.Sampler. It also reports static system
// information and the busiest processes for the status command.
package sysmetrics

import "time"

// SystemInfo describes the host the sampler runs on.
type SystemInfo struct {
	Hostname      string        `json:"hostname"`
	Platform      string        `json:"platform"`
	KernelVersion string        `json:"kernel_version"`
	BootTime      time.Time     `json:"boot_time"`
	Uptime        time.Duration `json:"uptime"`

	PhysicalCores int `json:"physical_cores"`
	LogicalCores  int `json:"logical_cores"`

	MemoryTotal uint64 `json:"memory_total"`
	SwapTotal   uint64 `json:"swap_total"`
	DiskTotal   uint64 `json:"disk_total"`
	DiskFree    uint64 `json:"disk_free"`
	DiskPath    string `json:"disk_path"`
}

// ProcessInfo is one row of the top-processes table.
type ProcessInfo struct {
	PID           int32   `json:"pid"`
	Name          string  `json:"name"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float32 `json:"memory_percent"`
}
