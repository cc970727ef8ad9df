package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/autosysmon/collectors/sysmetrics"
	"gitlab.com/tinyland/lab/autosysmon/config"
	"gitlab.com/tinyland/lab/autosysmon/internal/color"
	"gitlab.com/tinyland/lab/autosysmon/internal/format"
	"gitlab.com/tinyland/lab/autosysmon/logstore"
	"gitlab.com/tinyland/lab/autosysmon/render"
	"gitlab.com/tinyland/lab/autosysmon/tui"
)

// topProcesses is how many processes the status command lists.
const topProcesses = 5

var (
	styleSection = lipgloss.NewStyle().Bold(true).Foreground(render.ColorAccent)
	styleOK      = lipgloss.NewStyle().Foreground(render.ColorOK)
	styleWarn    = lipgloss.NewStyle().Foreground(render.ColorWarning)
	styleDim     = lipgloss.NewStyle().Foreground(render.ColorMuted)
)

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func cmdStart(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("start", "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	d, err := newDaemon(a.cfg, a.logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "autosysmon: sampling every %s into %s (Ctrl+C to stop)\n",
		d.interval, d.store.Dir())

	if err := d.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func cmdPlot(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("plot", "[-days N] [-out DIR]")
	n := fs.Int("days", a.cfg.Plot.Days, "number of days of history to plot")
	out := fs.String("out", a.cfg.Plot.OutputDir, "directory for the PNG files")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *n <= 0 {
		fmt.Fprintf(a.stderr, "-days must be positive, got %d\n", *n)
		return errUsage
	}

	store, err := openStore(a.cfg, a.logger)
	if err != nil {
		return err
	}
	records, err := store.ReadMetrics(days(*n))
	if err != nil {
		a.logger.Warn("some segments could not be read", "error", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(a.stdout, "No data available for plotting")
		return nil
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("plot: create output directory: %w", err)
	}
	cfg := render.ChartConfig{
		OutputDir: *out,
		Width:     a.cfg.Plot.Width,
		Height:    a.cfg.Plot.Height,
		Threshold: a.cfg.Alerts.CPUThreshold,
		Days:      *n,
	}

	usage, err := render.PlotUsageTrends(records, cfg)
	if err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	fmt.Fprintf(a.stdout, "Saved usage plot: %s\n", usage)

	comparison, err := render.PlotResourceComparison(records, cfg)
	if err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	fmt.Fprintf(a.stdout, "Saved comparison plot: %s\n", comparison)
	return nil
}

func cmdRotate(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("rotate", "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	store, err := openStore(a.cfg, a.logger)
	if err != nil {
		return err
	}
	outcomes, err := store.RotateAll()
	for _, o := range outcomes {
		if !o.Rotated {
			fmt.Fprintf(a.stdout, "%s: nothing to rotate\n", o.Stream)
			continue
		}
		size := ""
		if fi, statErr := os.Stat(o.Archive); statErr == nil {
			size = " (" + format.Bytes(uint64(fi.Size())) + ")"
		}
		fmt.Fprintf(a.stdout, "%s: rotated to %s%s\n", o.Stream, filepath.Base(o.Archive), size)
	}
	return err
}

func cmdStatus(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("status", "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	store, err := openStore(a.cfg, a.logger)
	if err != nil {
		return err
	}
	w := color.Writer(a.stdout, a.color)
	width := terminalWidth(a.stdout)
	now := time.Now()

	fmt.Fprintln(w, styleSection.Render("Daemon"))
	running, pid := lockHolder(filepath.Join(store.Dir(), lockFile))
	if running {
		fmt.Fprintf(w, "  %s (PID %d)\n", styleOK.Render("running"), pid)
	} else {
		fmt.Fprintf(w, "  %s\n", styleWarn.Render("not running"))
	}
	if hs, err := readHealthFile(store.Dir()); err == nil {
		line, fresh := describeHealth(hs, now, staleAfter(a.cfg.IntervalDuration(), a.cfg.RetryIntervalDuration()))
		style := styleOK
		if !fresh {
			style = styleWarn
		}
		fmt.Fprintf(w, "  health: %s\n", style.Render(line))
	}

	sampler := sysmetrics.NewSampler(sysmetrics.Config{
		CPUWindow: a.cfg.CPUWindowDuration(),
		DiskPath:  a.cfg.Sampler.DiskPath,
	}, a.logger)

	fmt.Fprintln(w)
	fmt.Fprintln(w, styleSection.Render("Host"))
	info, err := sampler.SystemInfo(ctx)
	if err != nil {
		a.logger.Warn("system info incomplete", "error", err)
	}
	if info != nil {
		writeSystemInfo(w, info)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, styleSection.Render(fmt.Sprintf("Top %d processes by CPU", topProcesses)))
	procs, err := sampler.TopProcesses(ctx, topProcesses)
	if err != nil {
		a.logger.Warn("process list unavailable", "error", err)
	}
	writeProcesses(w, procs, width)

	fmt.Fprintln(w)
	fmt.Fprintln(w, styleSection.Render("Storage")+styleDim.Render(" "+store.Dir()))
	for _, stream := range logstore.Streams {
		segs, err := store.Segments(stream)
		if err != nil {
			fmt.Fprintf(w, "  %-7s %v\n", stream, err)
			continue
		}
		fmt.Fprintf(w, "  %-7s %s\n", stream, describeSegments(segs))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, styleSection.Render("Latest sample"))
	records, err := store.ReadMetrics(24 * time.Hour)
	if err != nil {
		a.logger.Warn("some segments could not be read", "error", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, styleDim.Render("  none in the last 24h"))
		return nil
	}
	last := records[len(records)-1]
	fmt.Fprintf(w, "  %s (%s)\n", logstore.FormatMetric(last), format.FormatAge(last.Timestamp, now))
	return nil
}

func writeSystemInfo(w io.Writer, info *sysmetrics.SystemInfo) {
	if info.Hostname != "" {
		fmt.Fprintf(w, "  %-9s %s (%s, kernel %s)\n", "hostname", info.Hostname, info.Platform, info.KernelVersion)
	}
	if info.Uptime > 0 {
		fmt.Fprintf(w, "  %-9s %s\n", "uptime", format.FormatDuration(info.Uptime))
	}
	if info.LogicalCores > 0 {
		fmt.Fprintf(w, "  %-9s %d physical, %d logical\n", "cores", info.PhysicalCores, info.LogicalCores)
	}
	if info.MemoryTotal > 0 {
		fmt.Fprintf(w, "  %-9s %s (swap %s)\n", "memory", format.Bytes(info.MemoryTotal), format.Bytes(info.SwapTotal))
	}
	if info.DiskTotal > 0 {
		fmt.Fprintf(w, "  %-9s %s total, %s free on %s\n", "disk", format.Bytes(info.DiskTotal), format.Bytes(info.DiskFree), info.DiskPath)
	}
}

func writeProcesses(w io.Writer, procs []sysmetrics.ProcessInfo, width int) {
	if len(procs) == 0 {
		fmt.Fprintln(w, styleDim.Render("  unavailable"))
		return
	}
	// "  PID(7) NAME CPU(7) MEM(7)"
	nameWidth := width - 28
	if nameWidth < 10 {
		nameWidth = 10
	}
	fmt.Fprintf(w, "  %7s  %-*s %7s %7s\n", "PID", nameWidth, "NAME", "CPU", "MEM")
	for _, p := range procs {
		fmt.Fprintf(w, "  %7d  %-*s %7s %7s\n",
			p.PID, nameWidth, format.TruncateWithEllipsis(p.Name, nameWidth),
			format.Percent(p.CPUPercent), format.Percent(float64(p.MemoryPercent)))
	}
}

// describeSegments summarizes a stream's segments in one line.
func describeSegments(segs []logstore.SegmentInfo) string {
	if len(segs) == 0 {
		return "empty"
	}
	var total int64
	var archives, compressed int
	active := "no active segment"
	for _, s := range segs {
		total += s.Size
		if !s.Archived {
			active = "active " + format.Bytes(uint64(s.Size))
			continue
		}
		archives++
		if s.Compressed {
			compressed++
		}
	}
	return fmt.Sprintf("%s, %d archive(s) (%d compressed), %s total",
		active, archives, compressed, format.Bytes(uint64(total)))
}

func cmdReport(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("report", "[-days N]")
	n := fs.Int("days", a.cfg.Plot.Days, "number of days of history to summarize")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *n <= 0 {
		fmt.Fprintf(a.stderr, "-days must be positive, got %d\n", *n)
		return errUsage
	}

	store, err := openStore(a.cfg, a.logger)
	if err != nil {
		return err
	}
	records, err := store.ReadMetrics(days(*n))
	if err != nil {
		a.logger.Warn("some segments could not be read", "error", err)
	}

	w := color.Writer(a.stdout, a.color)
	if err := render.WriteSummary(w, render.Summarize(records, *n, a.cfg.Alerts.CPUThreshold)); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, render.Trends(records, a.cfg.Alerts.CPUThreshold, terminalWidth(a.stdout)))
	return nil
}

func cmdAlerts(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("alerts", "[-days N]")
	n := fs.Int("days", 1, "number of days of alerts to list")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *n <= 0 {
		fmt.Fprintf(a.stderr, "-days must be positive, got %d\n", *n)
		return errUsage
	}

	store, err := openStore(a.cfg, a.logger)
	if err != nil {
		return err
	}
	alerts, err := store.ReadAlerts(days(*n))
	if err != nil {
		a.logger.Warn("some segments could not be read", "error", err)
	}
	if len(alerts) == 0 {
		fmt.Fprintf(a.stdout, "No alerts in the last %d day(s)\n", *n)
		return nil
	}
	for _, al := range alerts {
		fmt.Fprintln(a.stdout, logstore.FormatAlert(al))
	}
	fmt.Fprintf(a.stdout, "%d alert(s) in the last %d day(s)\n", len(alerts), *n)
	return nil
}

func cmdCleanup(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("cleanup", "[-max-age-days N]")
	n := fs.Int("max-age-days", a.cfg.Storage.RetentionDays, "remove archives last modified more than N days ago")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *n <= 0 {
		fmt.Fprintf(a.stderr, "-max-age-days must be positive, got %d\n", *n)
		return errUsage
	}

	store, err := openStore(a.cfg, a.logger)
	if err != nil {
		return err
	}

	var errs []error
	var removed int
	var freed int64
	for _, stream := range logstore.Streams {
		sizes := make(map[string]int64)
		if segs, err := store.Segments(stream); err == nil {
			for _, s := range segs {
				sizes[s.Path] = s.Size
			}
		}
		paths, err := store.Prune(stream, days(*n))
		if err != nil {
			errs = append(errs, err)
		}
		for _, p := range paths {
			fmt.Fprintf(a.stdout, "removed %s\n", filepath.Base(p))
			freed += sizes[p]
		}
		removed += len(paths)
	}
	fmt.Fprintf(a.stdout, "Removed %d archived segment(s) older than %d day(s), freed %s\n",
		removed, *n, format.Bytes(uint64(freed)))
	return errors.Join(errs...)
}

func cmdWatch(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("watch", "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	store, err := openStore(a.cfg, a.logger)
	if err != nil {
		return err
	}
	watcher, err := tui.NewWatcher(store.Dir(), tui.DefaultDebounce, a.logger)
	if err != nil {
		return fmt.Errorf("watch %s: %w", store.Dir(), err)
	}
	defer watcher.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watcher.Run(ctx)

	return tui.Run(ctx, store, tui.Options{
		Threshold:    a.cfg.Alerts.CPUThreshold,
		Changes:      watcher.Changes(),
		RefreshEvery: a.cfg.IntervalDuration(),
	})
}

func cmdConfig(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("config", "[-write]")
	write := fs.Bool("write", false, "write the effective configuration to the config path")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *write {
		if a.configPath == "" {
			return errors.New("config: no config path; pass -config")
		}
		if err := config.SaveConfig(a.cfg, a.configPath); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Wrote %s\n", a.configPath)
		return nil
	}

	data, err := yaml.Marshal(a.cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	fmt.Fprintf(a.stdout, "# %s\n%s", a.configPath, strings.TrimLeft(string(data), "\n"))
	return nil
}
