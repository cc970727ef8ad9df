package logstore

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// gzipFile compresses src into dst. The output is written to a temp file in
// the same directory, fsynced and renamed, so dst either holds a complete
// gzip stream or does not exist.
func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), tempPrefix+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up the temp file on any failure path.
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	zw := gzip.NewWriter(tmp)
	zw.Name = filepath.Base(src)
	if _, err := io.Copy(zw, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("finish gzip stream: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("rename temp: %w", err)
	}

	success = true
	return nil
}

// segmentReader wraps an open segment, transparently decompressing .gz
// archives.
type segmentReader struct {
	f  *os.File
	zr *gzip.Reader
	io.Reader
}

func openSegment(path string) (*segmentReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, compressedExt) {
		return &segmentReader{f: f, Reader: f}, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segmentReader{f: f, zr: zr, Reader: zr}, nil
}

func (r *segmentReader) Close() error {
	if r.zr != nil {
		_ = r.zr.Close()
	}
	return r.f.Close()
}

// readFirstLine returns the first complete line of a plain segment.
func readFirstLine(path string) (string, error) {
	r, err := openSegment(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
