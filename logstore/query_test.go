package logstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSegment(t *testing.T, path string, lines ...string) {
	t.Helper()
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
}

func TestReadMetricsEmptyStore(t *testing.T) {
	s := newTestStore(t, Config{})
	recs, err := s.ReadMetrics(24 * time.Hour)
	if err != nil {
		t.Fatalf("ReadMetrics: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records, got %d", len(recs))
	}
}

func TestReadMetricsSpansAllSegmentKinds(t *testing.T) {
	s := newTestStore(t, Config{})
	dir := s.Dir()

	// Compressed archive.
	plain := filepath.Join(dir, "syslog_backup_20240101_090000.txt")
	writeSegment(t, plain,
		FormatMetric(metricAt(0, 1)),
		FormatMetric(metricAt(1, 2)),
	)
	if err := gzipFile(plain, plain+".gz"); err != nil {
		t.Fatalf("gzipFile: %v", err)
	}
	if err := os.Remove(plain); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	// Uncompressed archive left by a failed compression.
	writeSegment(t, filepath.Join(dir, "syslog_backup_20240101_093000.txt"),
		FormatMetric(metricAt(2, 3)),
	)

	// Active segment.
	writeSegment(t, s.ActivePath(StreamMetrics),
		FormatMetric(metricAt(3, 4)),
		FormatMetric(metricAt(4, 5)),
	)

	recs, err := s.ReadMetrics(time.Hour)
	if err != nil {
		t.Fatalf("ReadMetrics: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("expected 5 records, got %d", len(recs))
	}
	for i, r := range recs {
		if r.CPUPercent != float64(i+1) {
			t.Errorf("record %d: cpu %v, want %v", i, r.CPUPercent, i+1)
		}
	}
}

func TestReadMetricsPrefersCompressedTwin(t *testing.T) {
	s := newTestStore(t, Config{})
	plain := filepath.Join(s.Dir(), "syslog_backup_20240101_090000.txt")
	writeSegment(t, plain, FormatMetric(metricAt(0, 1)), FormatMetric(metricAt(1, 2)))
	if err := gzipFile(plain, plain+".gz"); err != nil {
		t.Fatalf("gzipFile: %v", err)
	}
	// plain is intentionally left in place.

	recs, err := s.ReadMetrics(time.Hour)
	if err != nil {
		t.Fatalf("ReadMetrics: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("expected 2 records (no duplicates), got %d", len(recs))
	}
}

func TestReadMetricsCutoff(t *testing.T) {
	s := newTestStore(t, Config{})

	// testNow is 10:05; a 3 minute window starts at 10:02.
	mustAppend(t, s, metricAt(0, 1), metricAt(1, 2), metricAt(2, 3), metricAt(4, 4))
	recs, err := s.ReadMetrics(3 * time.Minute)
	if err != nil {
		t.Fatalf("ReadMetrics: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records at or after cutoff, got %d", len(recs))
	}
	if recs[0].CPUPercent != 3 || recs[1].CPUPercent != 4 {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestReadMetricsSkipsStaleArchive(t *testing.T) {
	s := newTestStore(t, Config{})
	old := filepath.Join(s.Dir(), "syslog_backup_20231201_000000.txt")
	// Content timestamped inside the window, but the archive's mtime says it
	// was finished long ago, so it is never opened.
	writeSegment(t, old, FormatMetric(metricAt(4, 99)))
	stale := testNow.Add(-48 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	mustAppend(t, s, metricAt(3, 1))

	recs, err := s.ReadMetrics(24 * time.Hour)
	if err != nil {
		t.Fatalf("ReadMetrics: %v", err)
	}
	if len(recs) != 1 || recs[0].CPUPercent != 1 {
		t.Errorf("expected only the active record, got %+v", recs)
	}
}

func TestReadMetricsSkipsMalformedLines(t *testing.T) {
	s := newTestStore(t, Config{})
	path := s.ActivePath(StreamMetrics)
	content := FormatMetric(metricAt(0, 1)) + "\n" +
		"this is garbage\n" +
		"\n" +
		"2024-01-01 10:01:00 | CPU: x% | RAM: 1.0% | Disk: 1.0%\n" +
		FormatMetric(metricAt(2, 2)) + "\n" +
		"2024-01-01 10:03:00 | CPU: 9" // torn tail without newline
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	recs, err := s.ReadMetrics(time.Hour)
	if err != nil {
		t.Fatalf("ReadMetrics: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 valid records, got %d: %+v", len(recs), recs)
	}
	if recs[0].CPUPercent != 1 || recs[1].CPUPercent != 2 {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestReadMetricsSortsStable(t *testing.T) {
	s := newTestStore(t, Config{})
	// Out of order, with a tie at minute 1.
	mustAppend(t, s, metricAt(3, 1), metricAt(1, 2), metricAt(1, 3), metricAt(0, 4))

	recs, err := s.ReadMetrics(time.Hour)
	if err != nil {
		t.Fatalf("ReadMetrics: %v", err)
	}
	want := []float64{4, 2, 3, 1}
	if len(recs) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(recs))
	}
	for i := range want {
		if recs[i].CPUPercent != want[i] {
			t.Errorf("record %d: cpu %v, want %v", i, recs[i].CPUPercent, want[i])
		}
	}
}

func TestReadMetricsCorruptArchive(t *testing.T) {
	s := newTestStore(t, Config{})
	writeSegment(t, filepath.Join(s.Dir(), "syslog_backup_20240101_090000.txt.gz"), "not gzip")
	mustAppend(t, s, metricAt(1, 7))

	recs, err := s.ReadMetrics(time.Hour)
	if err == nil {
		t.Error("expected an error for the corrupt archive")
	}
	if !IsKind(err, KindIO) {
		t.Errorf("error kind: got %v, want KindIO", err)
	}
	if len(recs) != 1 || recs[0].CPUPercent != 7 {
		t.Errorf("records from healthy segments should still be returned, got %+v", recs)
	}
}

func TestReadAlerts(t *testing.T) {
	s := newTestStore(t, Config{})
	for i, msg := range []string{"first", "second"} {
		a := AlertRecord{Timestamp: testNow.Add(time.Duration(i-2) * time.Minute), Message: msg}
		if err := s.AppendAlert(a); err != nil {
			t.Fatalf("AppendAlert: %v", err)
		}
	}

	got, err := s.ReadAlerts(time.Hour)
	if err != nil {
		t.Fatalf("ReadAlerts: %v", err)
	}
	if len(got) != 2 || got[0].Message != "first" || got[1].Message != "second" {
		t.Errorf("unexpected alerts: %+v", got)
	}
}

func TestSegmentsOrder(t *testing.T) {
	s := newTestStore(t, Config{})
	dir := s.Dir()
	for _, name := range []string{
		"syslog_backup_20240102_000000.txt",
		"syslog_backup_20240101_000000_10.txt",
		"syslog_backup_20240101_000000_2.txt.gz",
		"syslog_backup_20240101_000000.txt",
		"alerts_backup_20240101_000000.txt",
		"syslog_backup_garbage.txt",
		".tmp-syslog_backup_20240101_000000.txt.gz-123",
	} {
		writeSegment(t, filepath.Join(dir, name), "x")
	}
	mustAppend(t, s, metricAt(0, 1))

	segs, err := s.Segments(StreamMetrics)
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	want := []string{
		"syslog_backup_20240101_000000.txt",
		"syslog_backup_20240101_000000_2.txt.gz",
		"syslog_backup_20240101_000000_10.txt",
		"syslog_backup_20240102_000000.txt",
		"syslog.txt",
	}
	if len(segs) != len(want) {
		t.Fatalf("expected %d segments, got %d: %+v", len(want), len(segs), segs)
	}
	for i := range want {
		if segs[i].Name != want[i] {
			t.Errorf("segment %d: got %s, want %s", i, segs[i].Name, want[i])
		}
	}
	if segs[len(segs)-1].Archived {
		t.Error("active segment reported as archived")
	}
	if !segs[1].Compressed {
		t.Error("gz archive not reported as compressed")
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t, Config{})
	dir := s.Dir()

	oldGz := filepath.Join(dir, "syslog_backup_20231101_000000.txt.gz")
	oldTwin := strings.TrimSuffix(oldGz, ".gz")
	recent := filepath.Join(dir, "syslog_backup_20231231_000000.txt.gz")
	writeSegment(t, oldGz, "x")
	writeSegment(t, oldTwin, "x")
	writeSegment(t, recent, "x")
	mustAppend(t, s, metricAt(0, 1))

	old := testNow.Add(-40 * 24 * time.Hour)
	for _, p := range []string{oldGz, oldTwin, s.ActivePath(StreamMetrics)} {
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
	}

	removed, err := s.Prune(StreamMetrics, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("expected 2 removed paths, got %v", removed)
	}
	for _, p := range []string{oldGz, oldTwin} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should be removed", filepath.Base(p))
		}
	}
	for _, p := range []string{recent, s.ActivePath(StreamMetrics)} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should be kept: %v", filepath.Base(p), err)
		}
	}
}

func TestPruneStaleTempFiles(t *testing.T) {
	s := newTestStore(t, Config{})
	dir := s.Dir()

	staleTmp := filepath.Join(dir, ".tmp-syslog_backup_20231101_000000.txt.gz-123")
	freshTmp := filepath.Join(dir, ".tmp-syslog_backup_20240101_100000.txt.gz-456")
	otherStream := filepath.Join(dir, ".tmp-alerts_backup_20231101_000000.txt.gz-789")
	for _, p := range []string{staleTmp, freshTmp, otherStream} {
		writeSegment(t, p, "partial")
	}
	old := testNow.Add(-40 * 24 * time.Hour)
	for _, p := range []string{staleTmp, otherStream} {
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
	}

	removed, err := s.Prune(StreamMetrics, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(removed) != 1 || removed[0] != staleTmp {
		t.Errorf("removed: got %v, want [%s]", removed, staleTmp)
	}
	if _, err := os.Stat(staleTmp); !os.IsNotExist(err) {
		t.Error("stale temp file should be removed")
	}
	for _, p := range []string{freshTmp, otherStream} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should be kept: %v", filepath.Base(p), err)
		}
	}
}
