// Package color decides whether terminal output is styled.
//
// It implements the NO_COLOR convention (https://no-color.org/) and
// pipe/redirect detection. When color is disabled, lipgloss is set to the
// Ascii profile so all styled renders produce plain text.
package color

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Mode values accepted by Apply, matching the display.color setting.
const (
	ModeAuto   = "auto"
	ModeAlways = "always"
	ModeNever  = "never"
)

// ShouldDisableColor returns true if color output should be suppressed for
// out in auto mode: NO_COLOR is set (any value), or out is not a terminal.
func ShouldDisableColor(out *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	if out == nil {
		return true
	}
	return !isatty.IsTerminal(out.Fd()) && !isatty.IsCygwinTerminal(out.Fd())
}

// Apply configures the global lipgloss renderer for the given mode and
// output file. Returns true if color is enabled.
func Apply(mode string, out *os.File) bool {
	switch mode {
	case ModeNever:
		ForceDisable()
		return false
	case ModeAlways:
		lipgloss.SetColorProfile(termenv.ANSI256)
		return true
	}
	if ShouldDisableColor(out) {
		ForceDisable()
		return false
	}
	return true
}

// ForceDisable sets the lipgloss color profile to Ascii, unconditionally
// disabling all color output. Used by tests and non-interactive commands.
func ForceDisable() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// StripANSI removes all ANSI escape sequences from a string.
func StripANSI(s string) string {
	var result []byte
	inEscape := false
	for i := 0; i < len(s); i++ {
		if inEscape {
			if (s[i] >= 'a' && s[i] <= 'z') || (s[i] >= 'A' && s[i] <= 'Z') || s[i] == '~' {
				inEscape = false
			}
			continue
		}
		if s[i] == '\x1b' {
			inEscape = true
			continue
		}
		result = append(result, s[i])
	}
	return string(result)
}

// Writer wraps w so that escape sequences are removed when color is off.
func Writer(w io.Writer, enabled bool) io.Writer {
	if enabled {
		return w
	}
	return stripWriter{w}
}

type stripWriter struct{ w io.Writer }

func (s stripWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(s.w, StripANSI(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
