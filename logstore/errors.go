package logstore

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a Store failure so callers can decide whether to log
// and continue or to surface the error.
type ErrorKind int

const (
	// KindIO covers missing files, permission problems and full disks.
	KindIO ErrorKind = iota + 1
	// KindCompression means an archive could not be compressed. The
	// uncompressed archive is left in place.
	KindCompression
	// KindParse marks a line that could not be decoded. Reads never return
	// it; they skip the line and count it.
	KindParse
)

// String returns the human-readable kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindCompression:
		return "compression"
	case KindParse:
		return "parse"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error is the error type returned by every Store operation.
type Error struct {
	Kind ErrorKind
	Op   string // "append", "rotate", "compress", "read", ...
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("logstore: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("logstore: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether any error in err's chain is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func ioError(op, path string, err error) error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

func parseError(op string, err error) error {
	return &Error{Kind: KindParse, Op: op, Err: err}
}
