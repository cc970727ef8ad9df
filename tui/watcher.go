package tui

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events a rotation produces
// (rename, create, write, remove) into one refresh.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes to the segments in a data directory.
type Watcher struct {
	fw       *fsnotify.Watcher
	dir      string
	debounce time.Duration
	changes  chan struct{}
	logger   *slog.Logger
}

// NewWatcher starts watching dir. Call Run to deliver events and Close to
// release the watch.
func NewWatcher(dir string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{
		fw:       fw,
		dir:      dir,
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		logger:   logger,
	}, nil
}

// Changes receives one value per debounced burst of segment writes.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Close stops the underlying watch.
func (w *Watcher) Close() error { return w.fw.Close() }

// Run delivers change notifications until ctx is done or the watch closes.
func (w *Watcher) Run(ctx context.Context) {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending bool
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod || !relevant(ev.Name) {
				continue
			}
			pending = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if !pending {
				continue
			}
			pending = false
			select {
			case w.changes <- struct{}{}:
			default:
				// A notification is already queued.
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch: fsnotify error", "error", err)
		}
	}
}

// relevant reports whether a path is a segment or health file rather than a
// temp file or lock.
func relevant(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, ".txt") ||
		strings.HasSuffix(name, ".txt.gz") ||
		name == "health.json"
}
