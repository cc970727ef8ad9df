package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"gitlab.com/tinyland/lab/autosysmon/alert"
	"gitlab.com/tinyland/lab/autosysmon/collectors"
	"gitlab.com/tinyland/lab/autosysmon/collectors/sysmetrics"
	"gitlab.com/tinyland/lab/autosysmon/config"
	"gitlab.com/tinyland/lab/autosysmon/logstore"
)

// lockFile is the advisory lock held by the running daemon. It also carries
// the daemon's PID.
const lockFile = "autosysmon.lock"

// defaultHealthEvery is how often the health file is rewritten.
const defaultHealthEvery = 30 * time.Second

// errAlreadyRunning is returned when another process holds the lock.
var errAlreadyRunning = errors.New("daemon already running")

// daemon owns the sampling loop: one sample per tick, appended to the
// metrics stream, checked against the alert rules, then a rotation check on
// both streams.
type daemon struct {
	logger   *slog.Logger
	store    *logstore.Store
	sampler  collectors.Sampler
	sink     *alert.Sink
	lockPath string

	interval      time.Duration
	retryInterval time.Duration
	healthEvery   time.Duration
	now           func() time.Time

	mu     sync.Mutex // protects health
	health HealthStatus
}

// newDaemon wires the store, sampler and alert sink from the configuration.
func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	sampler := sysmetrics.NewSampler(sysmetrics.Config{
		CPUWindow: cfg.CPUWindowDuration(),
		DiskPath:  cfg.Sampler.DiskPath,
	}, logger)

	sink := alert.NewSink(alert.Config{
		CPUThreshold:    cfg.Alerts.CPUThreshold,
		MemoryThreshold: cfg.Alerts.MemoryThreshold,
		DiskThreshold:   cfg.Alerts.DiskThreshold,
	}, store, logger)

	return &daemon{
		logger:        logger,
		store:         store,
		sampler:       sampler,
		sink:          sink,
		lockPath:      filepath.Join(store.Dir(), lockFile),
		interval:      cfg.IntervalDuration(),
		retryInterval: cfg.RetryIntervalDuration(),
		healthEvery:   defaultHealthEvery,
		now:           time.Now,
	}, nil
}

// openStore builds a log store handle for the configured data directory.
func openStore(cfg *config.Config, logger *slog.Logger) (*logstore.Store, error) {
	store, err := logstore.NewStore(logstore.Config{
		Dir:          cfg.Storage.Dir,
		MaxSizeBytes: cfg.Storage.MaxSizeBytes,
		MaxAge:       cfg.MaxAgeDuration(),
		Compress:     cfg.Storage.Compress,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("daemon: open store: %w", err)
	}
	return store, nil
}

// instanceLock is an exclusive flock on the lock file.
type instanceLock struct {
	f *os.File
}

// acquireLock takes a non-blocking exclusive flock on path and records the
// current PID in it. If another process holds the lock, the returned error
// wraps errAlreadyRunning and names that process's PID.
func acquireLock(path string) (*instanceLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid := readLockPID(path); pid > 0 {
				return nil, fmt.Errorf("%w (PID %d)", errAlreadyRunning, pid)
			}
			return nil, errAlreadyRunning
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	_ = f.Sync()
	return &instanceLock{f: f}, nil
}

// release clears the PID and drops the lock. The file itself stays so a
// concurrent acquirer never locks an unlinked inode.
func (l *instanceLock) release() error {
	_ = l.f.Truncate(0)
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		_ = l.f.Close()
		return fmt.Errorf("unlock: %w", err)
	}
	return l.f.Close()
}

// lockHolder reports whether some process holds the lock at path, and its
// PID when recorded. A missing lock file means no daemon.
func lockHolder(path string) (bool, int) {
	f, err := os.Open(path)
	if err != nil {
		return false, 0
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB); err != nil {
		return errors.Is(err, unix.EWOULDBLOCK), readLockPID(path)
	}
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return false, 0
}

func readLockPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// run takes the instance lock and runs the sampling and health loops until
// ctx is cancelled. A tick in progress at cancellation runs to completion.
func (d *daemon) run(ctx context.Context) error {
	lock, err := acquireLock(d.lockPath)
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	defer func() {
		if err := lock.release(); err != nil {
			d.logger.Error("failed to release lock", "path", d.lockPath, "error", err)
		}
	}()

	d.mu.Lock()
	d.health = HealthStatus{
		Status:   healthOK,
		PID:      os.Getpid(),
		Started:  d.now(),
		Interval: d.interval.String(),
	}
	d.mu.Unlock()

	d.logger.Info("daemon started",
		"pid", os.Getpid(),
		"dir", d.store.Dir(),
		"sampler", d.sampler.Name(),
		"interval", d.interval,
		"retry_interval", d.retryInterval,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.sampleLoop(gctx)
		return nil
	})
	g.Go(func() error {
		d.healthLoop(gctx)
		return nil
	})
	err = g.Wait()

	d.mu.Lock()
	d.health.Status = healthStopped
	d.mu.Unlock()
	d.writeHealth()

	d.logger.Info("daemon stopped")
	return err
}

// sampleLoop runs ticks until ctx is done. Cancellation is observed only
// between ticks; the wait after a failed tick is the retry interval.
func (d *daemon) sampleLoop(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if ctx.Err() != nil {
			return
		}

		wait := d.interval
		if err := d.tick(context.WithoutCancel(ctx)); err != nil {
			d.logger.Error("tick failed", "error", err, "retry_in", d.retryInterval)
			wait = d.retryInterval
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// tick performs one sample, append, alert and rotation pass. Every step runs
// even if an earlier one failed; the returned error joins all failures.
func (d *daemon) tick(ctx context.Context) error {
	start := d.now()
	var errs []error

	rec, err := d.sampler.Sample(ctx)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("sample: %w", err))
	case rec == nil:
		d.logger.Debug("sampler returned no data", "sampler", d.sampler.Name())
	default:
		if err := d.store.AppendMetrics(*rec); err != nil {
			errs = append(errs, err)
		}
		if _, err := d.sink.Check(rec); err != nil {
			errs = append(errs, err)
		}
	}

	for _, stream := range logstore.Streams {
		out, err := d.store.CheckAndRotate(stream)
		if err != nil {
			errs = append(errs, err)
		}
		if out.Rotated {
			d.logger.Info("rotated segment",
				"stream", stream,
				"reason", out.Reason,
				"archive", out.Archive,
				"compressed", out.Compressed,
			)
		}
	}

	err = errors.Join(errs...)
	d.recordTick(start, err)
	d.logger.Debug("tick complete", "duration", d.now().Sub(start))
	return err
}

func (d *daemon) recordTick(at time.Time, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.health.Ticks++
	d.health.LastTick = at
	if err != nil {
		d.health.Failures++
		d.health.Status = healthDegraded
		d.health.LastError = err.Error()
		return
	}
	d.health.Status = healthOK
	d.health.LastError = ""
}

// healthLoop rewrites the health file immediately and then every
// healthEvery until ctx is done.
func (d *daemon) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(d.healthEvery)
	defer ticker.Stop()

	d.writeHealth()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.writeHealth()
		}
	}
}

func (d *daemon) writeHealth() {
	d.mu.Lock()
	status := d.health
	d.mu.Unlock()
	status.UpdatedAt = d.now()

	if err := writeHealthFile(d.store.Dir(), status); err != nil {
		d.logger.Warn("failed to write health file", "error", err)
	}
}
