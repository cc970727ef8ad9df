package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Terminal palette shared by gauges, sparklines and the watch view.
const (
	ColorOK      = lipgloss.Color("#22C55E")
	ColorWarning = lipgloss.Color("#EAB308")
	ColorDanger  = lipgloss.Color("#EF4444")
	ColorMuted   = lipgloss.Color("#6B7280")
	ColorAccent  = lipgloss.Color("#06B6D4")
)

// sparkBlocks contains 8 unicode block characters for sparkline rendering,
// ordered from lowest to highest.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// GaugeConfig controls the appearance of a horizontal bar gauge.
type GaugeConfig struct {
	// Width is the total character width of the gauge bar.
	Width int
	// Percent is the value from 0 to 100; values outside are clamped for
	// drawing but the label shows the raw value.
	Percent float64
	// Label is optional text shown to the left of the bar.
	Label string
	// Warning is the % at which color changes to yellow (default: 70).
	Warning float64
	// Danger is the % at which color changes to red. Set it to the alert
	// threshold so a red bar means an alert was raised (default: 90).
	Danger float64
}

// GaugeColor returns the colour for percent under the given thresholds.
func GaugeColor(percent, warning, danger float64) lipgloss.Color {
	switch {
	case percent > danger:
		return ColorDanger
	case percent >= warning:
		return ColorWarning
	default:
		return ColorOK
	}
}

// Gauge renders a horizontal bar gauge.
// Format: [Label] ████████░░░░ 45.2%
func Gauge(cfg GaugeConfig) string {
	width := cfg.Width
	if width <= 0 {
		width = 20
	}
	warning, danger := cfg.Warning, cfg.Danger
	if warning <= 0 {
		warning = 70
	}
	if danger <= 0 {
		danger = 90
	}

	clamped := math.Max(0, math.Min(100, cfg.Percent))
	if math.IsNaN(clamped) {
		clamped = 0
	}
	filled := int(math.Round(clamped / 100 * float64(width)))

	style := lipgloss.NewStyle().Foreground(GaugeColor(cfg.Percent, warning, danger))
	bar := style.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled)

	var sb strings.Builder
	if cfg.Label != "" {
		sb.WriteString(cfg.Label)
		sb.WriteString(" ")
	}
	sb.WriteString(bar)
	sb.WriteString(fmt.Sprintf(" %5.1f%%", cfg.Percent))
	return sb.String()
}

// Downsample reduces data to at most width points by averaging equal-sized
// buckets. Shorter input is returned unchanged.
func Downsample(data []float64, width int) []float64 {
	if width <= 0 || len(data) <= width {
		return data
	}
	out := make([]float64, width)
	for i := 0; i < width; i++ {
		lo := i * len(data) / width
		hi := (i + 1) * len(data) / width
		if hi <= lo {
			hi = lo + 1
		}
		var sum float64
		for _, v := range data[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

// SparklineConfig controls the appearance of a sparkline chart.
type SparklineConfig struct {
	// Data points to render (most recent last).
	Data []float64
	// Width is the number of characters to render. Longer data is
	// downsampled; 0 uses len(Data).
	Width int
	// Min and Max fix the scale. If Min == Max, auto-scale.
	Min float64
	Max float64
	// Label is optional text shown before the sparkline.
	Label string
	// Color is the lipgloss color for the sparkline characters.
	Color lipgloss.Color
}

// Sparkline renders a unicode sparkline chart.
func Sparkline(cfg SparklineConfig) string {
	if len(cfg.Data) == 0 {
		return ""
	}
	data := Downsample(cfg.Data, cfg.Width)

	minVal, maxVal := cfg.Min, cfg.Max
	if minVal == maxVal {
		minVal, maxVal = data[0], data[0]
		for _, v := range data {
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}

	runes := make([]rune, 0, len(data))
	for _, v := range data {
		if minVal == maxVal {
			// All values equal: use mid-level block.
			runes = append(runes, sparkBlocks[len(sparkBlocks)/2])
			continue
		}
		normalized := math.Max(0, math.Min(1, (v-minVal)/(maxVal-minVal)))
		runes = append(runes, sparkBlocks[int(normalized*float64(len(sparkBlocks)-1))])
	}

	spark := string(runes)
	if cfg.Color != "" {
		spark = lipgloss.NewStyle().Foreground(cfg.Color).Render(spark)
	}
	if cfg.Label != "" {
		spark = cfg.Label + " " + spark
	}
	return spark
}
