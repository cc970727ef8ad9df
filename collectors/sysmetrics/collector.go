package sysmetrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"gitlab.com/tinyland/lab/autosysmon/collectors"
)

const (
	// samplerName is the identifier used in log output.
	samplerName = "sysmetrics"

	// DefaultCPUWindow is how long CPU busy time is measured per sample.
	DefaultCPUWindow = 1 * time.Second

	// DefaultDiskPath is the filesystem whose usage is sampled.
	DefaultDiskPath = "/"
)

// Config configures a Sampler.
type Config struct {
	CPUWindow time.Duration // Default: 1s
	DiskPath  string        // Default: "/"
}

// Sampler implements collectors.Sampler using gopsutil.
type Sampler struct {
	logger    *slog.Logger
	cpuWindow time.Duration
	diskPath  string

	// Overridable sources for testing.
	cpuPercent    func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	swapMemory    func(ctx context.Context) (*mem.SwapMemoryStat, error)
	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	cpuCounts     func(ctx context.Context, logical bool) (int, error)
	hostInfo      func(ctx context.Context) (*host.InfoStat, error)
	processes     func(ctx context.Context) ([]ProcessInfo, error)
	now           func() time.Time
}

var _ collectors.Sampler = (*Sampler)(nil)

// NewSampler creates a Sampler. If logger is nil, a no-op logger is used.
func NewSampler(cfg Config, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.CPUWindow <= 0 {
		cfg.CPUWindow = DefaultCPUWindow
	}
	if cfg.DiskPath == "" {
		cfg.DiskPath = DefaultDiskPath
	}
	return &Sampler{
		logger:        logger,
		cpuWindow:     cfg.CPUWindow,
		diskPath:      cfg.DiskPath,
		cpuPercent:    cpu.PercentWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		swapMemory:    mem.SwapMemoryWithContext,
		diskUsage:     disk.UsageWithContext,
		cpuCounts:     cpu.CountsWithContext,
		hostInfo:      host.InfoWithContext,
		processes:     listProcesses,
		now:           time.Now,
	}
}

// Name returns the sampler's identifier.
func (s *Sampler) Name() string { return samplerName }

// Sample measures CPU over the configured window, then memory and disk
// usage. Any failed measurement yields no record for this tick; a partial
// record is never returned.
func (s *Sampler) Sample(ctx context.Context) (*collectors.MetricRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pct, err := s.cpuPercent(ctx, s.cpuWindow, false)
	if err != nil {
		return nil, fmt.Errorf("sysmetrics: cpu: %w", err)
	}
	if len(pct) == 0 {
		return nil, errors.New("sysmetrics: cpu: no data")
	}

	vm, err := s.virtualMemory(ctx)
	if err != nil {
		return nil, fmt.Errorf("sysmetrics: memory: %w", err)
	}

	du, err := s.diskUsage(ctx, s.diskPath)
	if err != nil {
		return nil, fmt.Errorf("sysmetrics: disk %s: %w", s.diskPath, err)
	}

	rec := &collectors.MetricRecord{
		Timestamp:     s.now().Truncate(time.Second),
		CPUPercent:    pct[0],
		MemoryPercent: vm.UsedPercent,
		DiskPercent:   du.UsedPercent,
	}

	s.logger.Debug("sysmetrics sampled",
		"cpu", fmt.Sprintf("%.1f%%", rec.CPUPercent),
		"ram", fmt.Sprintf("%.1f%%", rec.MemoryPercent),
		"disk", fmt.Sprintf("%.1f%%", rec.DiskPercent),
	)
	return rec, nil
}

// SystemInfo gathers host identity, uptime and capacity figures. Fields whose
// source fails are left zero; the error joins every failure.
func (s *Sampler) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	info := &SystemInfo{DiskPath: s.diskPath}
	var errs []error

	if h, err := s.hostInfo(ctx); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		if h.PlatformVersion != "" {
			info.Platform += " " + h.PlatformVersion
		}
		info.KernelVersion = h.KernelVersion
		info.BootTime = time.Unix(int64(h.BootTime), 0)
		info.Uptime = time.Duration(h.Uptime) * time.Second
	} else {
		errs = append(errs, fmt.Errorf("sysmetrics: host: %w", err))
	}

	if n, err := s.cpuCounts(ctx, false); err == nil {
		info.PhysicalCores = n
	} else {
		errs = append(errs, fmt.Errorf("sysmetrics: physical cores: %w", err))
	}
	if n, err := s.cpuCounts(ctx, true); err == nil {
		info.LogicalCores = n
	} else {
		errs = append(errs, fmt.Errorf("sysmetrics: logical cores: %w", err))
	}

	if vm, err := s.virtualMemory(ctx); err == nil {
		info.MemoryTotal = vm.Total
	} else {
		errs = append(errs, fmt.Errorf("sysmetrics: memory: %w", err))
	}
	if sw, err := s.swapMemory(ctx); err == nil {
		info.SwapTotal = sw.Total
	} else {
		errs = append(errs, fmt.Errorf("sysmetrics: swap: %w", err))
	}
	if du, err := s.diskUsage(ctx, s.diskPath); err == nil {
		info.DiskTotal = du.Total
		info.DiskFree = du.Free
	} else {
		errs = append(errs, fmt.Errorf("sysmetrics: disk %s: %w", s.diskPath, err))
	}

	return info, errors.Join(errs...)
}

// TopProcesses returns up to n processes ordered by CPU usage, highest
// first. Ties are broken by PID so the order is stable.
func (s *Sampler) TopProcesses(ctx context.Context, n int) ([]ProcessInfo, error) {
	procs, err := s.processes(ctx)
	if err != nil {
		return nil, fmt.Errorf("sysmetrics: processes: %w", err)
	}
	sort.SliceStable(procs, func(i, j int) bool {
		if procs[i].CPUPercent != procs[j].CPUPercent {
			return procs[i].CPUPercent > procs[j].CPUPercent
		}
		return procs[i].PID < procs[j].PID
	})
	if n >= 0 && len(procs) > n {
		procs = procs[:n]
	}
	return procs, nil
}

// listProcesses snapshots every visible process. Processes that exit or deny
// access while being inspected are skipped.
func listProcesses(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}
		memPct, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			continue
		}
		out = append(out, ProcessInfo{
			PID:           p.Pid,
			Name:          name,
			CPUPercent:    cpuPct,
			MemoryPercent: memPct,
		})
	}
	return out, nil
}
