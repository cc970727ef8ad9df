package format

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// TruncateWithEllipsis truncates a string to maxWidth characters, appending "..."
// if the string exceeds the limit. If maxWidth is less than 4, the string
// is hard-truncated without an ellipsis suffix.
func TruncateWithEllipsis(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= maxWidth {
		return s
	}

	if maxWidth < 4 {
		return string(runes[:maxWidth])
	}

	return string(runes[:maxWidth-3]) + "..."
}

// Bytes renders a size in IEC units ("1.0 MiB").
func Bytes(n uint64) string {
	return humanize.IBytes(n)
}

// Percent renders a percentage with one decimal, matching the log format.
func Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
