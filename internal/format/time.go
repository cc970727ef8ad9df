// Package format provides shared string and time formatting utilities.
package format

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// FormatAge renders how long before now t was, in its largest whole unit:
// "just now" under ten seconds, then "45s ago", "5m ago", "3h ago", "2d ago".
// A zero t is "never".
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t).Abs()
	switch {
	case d < 10*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", d/time.Second)
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", d/time.Minute)
	case d < day:
		return fmt.Sprintf("%dh ago", d/time.Hour)
	}
	return fmt.Sprintf("%dd ago", d/day)
}

// durationUnits pairs each unit with the next smaller one shown after it.
var durationUnits = []struct {
	size, next time.Duration
	label      string
	nextLabel  string
}{
	{day, time.Hour, "d", "h"},
	{time.Hour, time.Minute, "h", "m"},
	{time.Minute, time.Second, "m", "s"},
}

// FormatDuration renders d with its two most significant units, for example
// "5m 30s", "2h 15m" or "3d 4h". Below a minute only seconds are shown.
// Negative durations are rendered by magnitude.
func FormatDuration(d time.Duration) string {
	d = d.Abs()
	for _, u := range durationUnits {
		if d >= u.size {
			rest := d % u.size
			return fmt.Sprintf("%d%s %d%s", d/u.size, u.label, rest/u.next, u.nextLabel)
		}
	}
	return fmt.Sprintf("%ds", d/time.Second)
}
