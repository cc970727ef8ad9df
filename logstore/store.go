// Package logstore persists metric and alert records as line-oriented text
// segments. Each stream has one active segment that only ever grows by whole
// lines; when the rotation policy trips, the active segment is renamed to a
// timestamped archive and compressed. Reads span the active segment and every
// archive overlapping the requested window.
//
// Files are stored in a flat directory:
//
//	~/.local/share/autosysmon/
//	  syslog.txt
//	  syslog_backup_20240101_100000.txt.gz
//	  alerts.txt
//	  alerts_backup_20240101_100000.txt.gz
package logstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gitlab.com/tinyland/lab/autosysmon/collectors"
)

// Stream names one logical log.
type Stream string

const (
	// StreamMetrics holds one line per metric sample.
	StreamMetrics Stream = "syslog"
	// StreamAlerts holds one line per raised alert.
	StreamAlerts Stream = "alerts"
)

// Streams lists every stream the store manages, in rotation order.
var Streams = []Stream{StreamMetrics, StreamAlerts}

const (
	activeExt     = ".txt"
	compressedExt = ".gz"
	archiveInfix  = "_backup_"
	archiveLayout = "20060102_150405"
	tempPrefix    = ".tmp-"
)

// Defaults applied by NewStore when a Config field is zero.
const (
	DefaultMaxSizeBytes int64         = 1 << 20
	DefaultMaxAge       time.Duration = 72 * time.Hour
)

// Config is the rotation policy and location of a Store.
type Config struct {
	// Dir holds all segments. Created on NewStore.
	Dir string
	// MaxSizeBytes rotates the active segment once it grows past this size.
	MaxSizeBytes int64
	// MaxAge rotates the active segment once its oldest content is this old.
	MaxAge time.Duration
	// Compress gzips archives after rotation.
	Compress bool
}

// RotationOutcome reports what a rotation check did.
type RotationOutcome struct {
	Stream  Stream `json:"stream"`
	Rotated bool   `json:"rotated"`
	// Reason is "size", "age" or "forced" when Rotated is set.
	Reason string `json:"reason,omitempty"`
	// Archive is the final archive path: the .gz when compression
	// succeeded, the plain .txt otherwise.
	Archive    string `json:"archive,omitempty"`
	Compressed bool   `json:"compressed"`
}

// Store manages the segments of every stream under one directory.
// A Store is safe for use by a single writer per stream; any number of
// readers in other processes may run concurrently.
type Store struct {
	cfg    Config
	logger *slog.Logger

	now      func() time.Time
	loc      *time.Location
	compress func(src, dst string) error
}

// NewStore creates a store rooted at cfg.Dir, creating the directory with
// 0755 permissions if it does not exist.
func NewStore(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("logstore: empty directory")
	}
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = DefaultMaxSizeBytes
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, ioError("create directory", cfg.Dir, err)
	}
	return &Store{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		loc:      time.Local,
		compress: gzipFile,
	}, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.cfg.Dir }

// Config returns the effective configuration, defaults applied.
func (s *Store) Config() Config { return s.cfg }

// ActivePath returns the path of the stream's active segment.
func (s *Store) ActivePath(stream Stream) string {
	return filepath.Join(s.cfg.Dir, string(stream)+activeExt)
}

// Append writes one line to the stream's active segment, creating it if
// needed. The line and its newline go out in a single write followed by an
// fsync, so a concurrent reader sees either the whole line or none of it.
func (s *Store) Append(stream Stream, line string) error {
	path := s.ActivePath(stream)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return ioError("open", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return ioError("stat", path, err)
	}
	size := info.Size()

	buf := make([]byte, 0, len(line)+2)
	if size > 0 {
		// Terminate a fragment left by an earlier failed write so this
		// record starts on its own line.
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, size-1); err != nil {
			_ = f.Close()
			return ioError("read", path, err)
		}
		if last[0] != '\n' {
			buf = append(buf, '\n')
		}
	}
	buf = append(buf, line...)
	buf = append(buf, '\n')

	if _, err := f.Write(buf); err != nil {
		// Drop whatever part of the record made it to disk.
		_ = f.Truncate(size)
		_ = f.Close()
		return ioError("write", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return ioError("sync", path, err)
	}
	if err := f.Close(); err != nil {
		return ioError("close", path, err)
	}
	return nil
}

// AppendMetrics appends a metric record to the metrics stream.
func (s *Store) AppendMetrics(r collectors.MetricRecord) error {
	return s.Append(StreamMetrics, FormatMetric(r))
}

// AppendAlert appends an alert record to the alerts stream.
func (s *Store) AppendAlert(a AlertRecord) error {
	return s.Append(StreamAlerts, FormatAlert(a))
}

// CheckAndRotate rotates the stream's active segment if it is larger than
// MaxSizeBytes or if its content is at least MaxAge old. An absent or empty
// active segment is left alone.
//
// Age is measured from the earlier of the file's mtime and the timestamp of
// its first line. Appends refresh mtime, so the first line is what tracks how
// long the segment has been accumulating.
func (s *Store) CheckAndRotate(stream Stream) (RotationOutcome, error) {
	out := RotationOutcome{Stream: stream}
	path := s.ActivePath(stream)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return out, ioError("stat", path, err)
	}
	if info.Size() == 0 {
		return out, nil
	}

	var reason string
	switch {
	case info.Size() > s.cfg.MaxSizeBytes:
		reason = "size"
	case s.now().Sub(s.segmentStart(path, info.ModTime())) >= s.cfg.MaxAge:
		reason = "age"
	default:
		return out, nil
	}

	s.logger.Debug("logstore: rotation triggered",
		slog.String("stream", string(stream)),
		slog.String("reason", reason),
		slog.Int64("size", info.Size()),
	)
	return s.rotate(stream, reason)
}

// Rotate unconditionally archives the stream's active segment. An absent or
// empty active segment is a no-op.
func (s *Store) Rotate(stream Stream) (RotationOutcome, error) {
	info, err := os.Stat(s.ActivePath(stream))
	if err != nil {
		if os.IsNotExist(err) {
			return RotationOutcome{Stream: stream}, nil
		}
		return RotationOutcome{Stream: stream}, ioError("stat", s.ActivePath(stream), err)
	}
	if info.Size() == 0 {
		return RotationOutcome{Stream: stream}, nil
	}
	return s.rotate(stream, "forced")
}

// RotateAll force-rotates every stream. Failures on one stream do not stop
// the others; the returned error joins all of them.
func (s *Store) RotateAll() ([]RotationOutcome, error) {
	var (
		outcomes []RotationOutcome
		errs     []error
	)
	for _, stream := range Streams {
		out, err := s.Rotate(stream)
		outcomes = append(outcomes, out)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return outcomes, errors.Join(errs...)
}

func (s *Store) rotate(stream Stream, reason string) (RotationOutcome, error) {
	out := RotationOutcome{Stream: stream}
	src := s.ActivePath(stream)

	archive, err := s.archivePath(stream, s.now())
	if err != nil {
		return out, err
	}
	if err := os.Rename(src, archive); err != nil {
		return out, ioError("rename", src, err)
	}
	out.Rotated = true
	out.Reason = reason
	out.Archive = archive

	if !s.cfg.Compress {
		s.logger.Info("logstore: rotated",
			slog.String("stream", string(stream)),
			slog.String("reason", reason),
			slog.String("archive", filepath.Base(archive)),
		)
		return out, nil
	}

	dst := archive + compressedExt
	if err := s.compress(archive, dst); err != nil {
		// The uncompressed archive stays in place; no records are lost.
		return out, &Error{Kind: KindCompression, Op: "compress", Path: archive, Err: err}
	}
	if err := os.Remove(archive); err != nil {
		// Both copies exist now. Readers prefer the .gz, so report the
		// compressed archive and surface the leftover as an I/O error.
		out.Archive = dst
		out.Compressed = true
		return out, ioError("remove", archive, err)
	}
	out.Archive = dst
	out.Compressed = true

	s.logger.Info("logstore: rotated",
		slog.String("stream", string(stream)),
		slog.String("reason", reason),
		slog.String("archive", filepath.Base(dst)),
	)
	return out, nil
}

// archivePath picks an unused archive name for the stream at time t. A
// second rotation within the same second gets a numeric suffix rather than
// overwriting the earlier archive.
func (s *Store) archivePath(stream Stream, t time.Time) (string, error) {
	base := string(stream) + archiveInfix + t.In(s.loc).Format(archiveLayout)
	for i := 0; i < 1000; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		path := filepath.Join(s.cfg.Dir, name+activeExt)
		taken, err := exists(path)
		if err != nil {
			return "", err
		}
		if !taken {
			taken, err = exists(path + compressedExt)
			if err != nil {
				return "", err
			}
		}
		if !taken {
			return path, nil
		}
	}
	return "", ioError("name archive", filepath.Join(s.cfg.Dir, base), errors.New("too many archives in one second"))
}

// segmentStart returns the earlier of mtime and the first line's timestamp.
func (s *Store) segmentStart(path string, mtime time.Time) time.Time {
	first, err := readFirstLine(path)
	if err != nil {
		return mtime
	}
	ts, ok := lineTimestamp(first, s.loc)
	if ok && ts.Before(mtime) {
		return ts
	}
	return mtime
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, ioError("stat", path, err)
}
