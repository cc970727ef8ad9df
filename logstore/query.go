package logstore

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/autosysmon/collectors"
)

// ReadMetrics returns every metric record with a timestamp at or after
// now-lookback, across the active segment and all overlapping archives,
// sorted by timestamp. Records that compare equal keep their file order.
//
// Malformed lines are skipped. A segment that cannot be read contributes an
// error to the joined result, but records from the other segments are still
// returned.
func (s *Store) ReadMetrics(lookback time.Duration) ([]collectors.MetricRecord, error) {
	return readWindow(s, StreamMetrics, lookback, ParseMetric,
		func(r collectors.MetricRecord) time.Time { return r.Timestamp })
}

// ReadAlerts is ReadMetrics for the alerts stream.
func (s *Store) ReadAlerts(lookback time.Duration) ([]AlertRecord, error) {
	return readWindow(s, StreamAlerts, lookback, ParseAlert,
		func(a AlertRecord) time.Time { return a.Timestamp })
}

func readWindow[T any](
	s *Store,
	stream Stream,
	lookback time.Duration,
	parse func(string, *time.Location) (T, error),
	stamp func(T) time.Time,
) ([]T, error) {
	cutoff := s.now().Add(-lookback)

	segs, err := s.Segments(stream)
	if err != nil && len(segs) == 0 {
		return nil, err
	}
	errs := []error{err}

	var (
		records   []T
		malformed int
	)
	for _, seg := range segs {
		// An archive last written before the cutoff holds nothing newer.
		if seg.Archived && seg.ModTime.Before(cutoff) {
			continue
		}
		err := scanSegment(seg.Path, func(line string) {
			rec, err := parse(line, s.loc)
			if err != nil {
				malformed++
				return
			}
			if !stamp(rec).Before(cutoff) {
				records = append(records, rec)
			}
		})
		if err != nil {
			errs = append(errs, ioError("read", seg.Path, err))
		}
	}

	if malformed > 0 {
		s.logger.Debug("logstore: skipped malformed lines",
			slog.String("stream", string(stream)),
			slog.Int("count", malformed),
		)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return stamp(records[i]).Before(stamp(records[j]))
	})
	return records, errors.Join(errs...)
}

// scanSegment calls fn for every complete, non-blank line of the segment. A
// trailing fragment without a newline is an append in progress and is not
// passed on.
func scanSegment(path string, fn func(line string)) error {
	r, err := openSegment(path)
	if err != nil {
		return err
	}
	defer r.Close()

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fn(line)
	}
}
