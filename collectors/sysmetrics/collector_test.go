package sysmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

var fixedNow = time.Date(2024, 1, 1, 10, 0, 0, 500_000_000, time.UTC)

func newFakeSampler() *Sampler {
	s := NewSampler(Config{}, nil)
	s.cpuPercent = func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error) {
		return []float64{45.2}, nil
	}
	s.virtualMemory = func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 16 << 30, UsedPercent: 67.8}, nil
	}
	s.swapMemory = func(ctx context.Context) (*mem.SwapMemoryStat, error) {
		return &mem.SwapMemoryStat{Total: 2 << 30}, nil
	}
	s.diskUsage = func(ctx context.Context, path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Path: path, Total: 500 << 30, Free: 400 << 30, UsedPercent: 23.1}, nil
	}
	s.cpuCounts = func(ctx context.Context, logical bool) (int, error) {
		if logical {
			return 8, nil
		}
		return 4, nil
	}
	s.hostInfo = func(ctx context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{
			Hostname:        "box",
			Platform:        "ubuntu",
			PlatformVersion: "22.04",
			KernelVersion:   "6.1.0",
			BootTime:        uint64(fixedNow.Add(-90 * time.Minute).Unix()),
			Uptime:          5400,
		}, nil
	}
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestNewSamplerDefaults(t *testing.T) {
	s := NewSampler(Config{}, nil)
	if s.cpuWindow != DefaultCPUWindow {
		t.Errorf("cpuWindow: got %v, want %v", s.cpuWindow, DefaultCPUWindow)
	}
	if s.diskPath != DefaultDiskPath {
		t.Errorf("diskPath: got %q, want %q", s.diskPath, DefaultDiskPath)
	}
	if s.Name() != "sysmetrics" {
		t.Errorf("Name: got %q", s.Name())
	}
}

func TestSample(t *testing.T) {
	s := newFakeSampler()
	var gotWindow time.Duration
	s.cpuPercent = func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error) {
		gotWindow = interval
		if percpu {
			t.Error("expected aggregate CPU, got per-CPU request")
		}
		return []float64{45.2}, nil
	}

	rec, err := s.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if gotWindow != DefaultCPUWindow {
		t.Errorf("cpu window: got %v, want %v", gotWindow, DefaultCPUWindow)
	}
	if !rec.Timestamp.Equal(fixedNow.Truncate(time.Second)) {
		t.Errorf("timestamp: got %v, want second resolution", rec.Timestamp)
	}
	if rec.CPUPercent != 45.2 || rec.MemoryPercent != 67.8 || rec.DiskPercent != 23.1 {
		t.Errorf("record: got %+v", rec)
	}
}

func TestSampleFailuresYieldNoRecord(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		mutate func(s *Sampler)
	}{
		{"cpu error", func(s *Sampler) {
			s.cpuPercent = func(context.Context, time.Duration, bool) ([]float64, error) { return nil, boom }
		}},
		{"cpu empty", func(s *Sampler) {
			s.cpuPercent = func(context.Context, time.Duration, bool) ([]float64, error) { return nil, nil }
		}},
		{"memory error", func(s *Sampler) {
			s.virtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, boom }
		}},
		{"disk error", func(s *Sampler) {
			s.diskUsage = func(context.Context, string) (*disk.UsageStat, error) { return nil, boom }
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeSampler()
			tt.mutate(s)
			rec, err := s.Sample(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if rec != nil {
				t.Errorf("expected nil record, got %+v", rec)
			}
		})
	}
}

func TestSampleCancelledContext(t *testing.T) {
	s := newFakeSampler()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if rec, err := s.Sample(ctx); !errors.Is(err, context.Canceled) || rec != nil {
		t.Errorf("Sample on cancelled ctx: rec=%v err=%v", rec, err)
	}
}

func TestSystemInfo(t *testing.T) {
	s := newFakeSampler()
	info, err := s.SystemInfo(context.Background())
	if err != nil {
		t.Fatalf("SystemInfo: %v", err)
	}
	if info.Hostname != "box" || info.Platform != "ubuntu 22.04" {
		t.Errorf("host fields: got %+v", info)
	}
	if info.Uptime != 90*time.Minute {
		t.Errorf("uptime: got %v", info.Uptime)
	}
	if info.PhysicalCores != 4 || info.LogicalCores != 8 {
		t.Errorf("cores: got %d/%d", info.PhysicalCores, info.LogicalCores)
	}
	if info.MemoryTotal != 16<<30 || info.SwapTotal != 2<<30 {
		t.Errorf("memory totals: got %d/%d", info.MemoryTotal, info.SwapTotal)
	}
	if info.DiskTotal != 500<<30 || info.DiskFree != 400<<30 || info.DiskPath != "/" {
		t.Errorf("disk: got %+v", info)
	}
}

func TestSystemInfoPartialFailure(t *testing.T) {
	s := newFakeSampler()
	s.swapMemory = func(context.Context) (*mem.SwapMemoryStat, error) { return nil, errors.New("no swap") }

	info, err := s.SystemInfo(context.Background())
	if err == nil {
		t.Fatal("expected joined error")
	}
	if info.SwapTotal != 0 {
		t.Errorf("swap should be zero on failure")
	}
	if info.MemoryTotal == 0 || info.Hostname == "" {
		t.Errorf("other fields should still be filled: %+v", info)
	}
}

func TestTopProcesses(t *testing.T) {
	s := newFakeSampler()
	s.processes = func(context.Context) ([]ProcessInfo, error) {
		return []ProcessInfo{
			{PID: 10, Name: "idle", CPUPercent: 0.1},
			{PID: 3, Name: "build", CPUPercent: 95},
			{PID: 7, Name: "db", CPUPercent: 12},
			{PID: 2, Name: "web", CPUPercent: 12},
		}, nil
	}

	top, err := s.TopProcesses(context.Background(), 3)
	if err != nil {
		t.Fatalf("TopProcesses: %v", err)
	}
	want := []string{"build", "web", "db"}
	if len(top) != len(want) {
		t.Fatalf("expected %d processes, got %d", len(want), len(top))
	}
	for i := range want {
		if top[i].Name != want[i] {
			t.Errorf("position %d: got %s, want %s", i, top[i].Name, want[i])
		}
	}
}

func TestTopProcessesError(t *testing.T) {
	s := newFakeSampler()
	s.processes = func(context.Context) ([]ProcessInfo, error) { return nil, errors.New("denied") }
	if _, err := s.TopProcesses(context.Background(), 5); err == nil {
		t.Error("expected error")
	}
}
