package logstore

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SegmentInfo describes one file of a stream.
type SegmentInfo struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModTime    time.Time `json:"mod_time"`
	Archived   bool      `json:"archived"`
	Compressed bool      `json:"compressed"`

	// sort key: archive timestamp and collision suffix.
	stamp  string
	suffix int
}

// Segments lists the stream's archives oldest first followed by the active
// segment, if present. When an archive exists both compressed and
// uncompressed (a crash between compressing and removing the original), only
// the compressed copy is listed.
func (s *Store) Segments(stream Stream) ([]SegmentInfo, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioError("list", s.cfg.Dir, err)
	}

	prefix := string(stream) + archiveInfix
	archives := make(map[string]SegmentInfo)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		compressed := strings.HasSuffix(name, activeExt+compressedExt)
		if !compressed && !strings.HasSuffix(name, activeExt) {
			continue
		}
		key := strings.TrimSuffix(strings.TrimSuffix(name, compressedExt), activeExt)
		stamp, suffix, ok := parseArchiveKey(strings.TrimPrefix(key, prefix))
		if !ok {
			continue
		}
		if prev, seen := archives[key]; seen && prev.Compressed {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info by a concurrent prune.
			continue
		}
		archives[key] = SegmentInfo{
			Name:       name,
			Path:       filepath.Join(s.cfg.Dir, name),
			Size:       info.Size(),
			ModTime:    info.ModTime(),
			Archived:   true,
			Compressed: compressed,
			stamp:      stamp,
			suffix:     suffix,
		}
	}

	segs := make([]SegmentInfo, 0, len(archives)+1)
	for _, seg := range archives {
		segs = append(segs, seg)
	}
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].stamp != segs[j].stamp {
			return segs[i].stamp < segs[j].stamp
		}
		return segs[i].suffix < segs[j].suffix
	})

	active := s.ActivePath(stream)
	if info, err := os.Stat(active); err == nil {
		segs = append(segs, SegmentInfo{
			Name:    filepath.Base(active),
			Path:    active,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	} else if !os.IsNotExist(err) {
		return segs, ioError("stat", active, err)
	}
	return segs, nil
}

// parseArchiveKey splits "20240101_100000" or "20240101_100000_2" into the
// timestamp and collision suffix.
func parseArchiveKey(key string) (string, int, bool) {
	if len(key) < len(archiveLayout) {
		return "", 0, false
	}
	stamp := key[:len(archiveLayout)]
	if _, err := time.Parse(archiveLayout, stamp); err != nil {
		return "", 0, false
	}
	rest := key[len(archiveLayout):]
	if rest == "" {
		return stamp, 0, true
	}
	n, err := strconv.Atoi(strings.TrimPrefix(rest, "_"))
	if err != nil || !strings.HasPrefix(rest, "_") {
		return "", 0, false
	}
	return stamp, n, true
}

// Prune removes archived segments of the stream last modified more than
// olderThan ago. The active segment is never touched. Returns the paths
// removed; a failure to remove one archive does not stop the others.
func (s *Store) Prune(stream Stream, olderThan time.Duration) ([]string, error) {
	segs, err := s.Segments(stream)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-olderThan)
	var (
		removed []string
		errs    []error
	)
	for _, seg := range segs {
		if !seg.Archived || !seg.ModTime.Before(cutoff) {
			continue
		}
		if err := os.Remove(seg.Path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, ioError("remove", seg.Path, err))
			continue
		}
		removed = append(removed, seg.Path)
		// A leftover uncompressed twin of a removed .gz goes too.
		if seg.Compressed {
			twin := strings.TrimSuffix(seg.Path, compressedExt)
			if err := os.Remove(twin); err == nil {
				removed = append(removed, twin)
			}
		}
	}
	stale, err := s.pruneTemp(stream, cutoff)
	removed = append(removed, stale...)
	if err != nil {
		errs = append(errs, err)
	}
	if len(removed) > 0 {
		s.logger.Info("logstore: pruned archives",
			"stream", string(stream),
			"removed", len(removed),
		)
	}
	return removed, errors.Join(errs...)
}

// pruneTemp removes compression temp files for stream last modified before
// cutoff. They are left behind when the process dies mid-compression.
func (s *Store) pruneTemp(stream Stream, cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioError("list", s.cfg.Dir, err)
	}

	prefix := tempPrefix + string(stream) + archiveInfix
	var (
		removed []string
		errs    []error
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.cfg.Dir, e.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, ioError("remove", path, err))
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}
