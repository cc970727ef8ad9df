package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/autosysmon/collectors"
)

var (
	styleHeading = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	styleMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Trends renders one sparkline row per metric on a fixed 0-100 scale,
// followed by the latest value as a gauge. width is the terminal width.
func Trends(records []collectors.MetricRecord, threshold float64, width int) string {
	if len(records) == 0 {
		return styleMuted.Render("No data available")
	}
	if width < 40 {
		width = 40
	}
	_, cpu, ram, disk := columns(records)
	last := records[len(records)-1]

	// label(5) + space + spark + space + "avg 100.0%"(10)
	sparkWidth := width - 18
	rows := []struct {
		label string
		data  []float64
		color lipgloss.Color
		now   float64
	}{
		{"CPU", cpu, ColorDanger, last.CPUPercent},
		{"RAM", ram, lipgloss.Color("#3B82F6"), last.MemoryPercent},
		{"Disk", disk, ColorOK, last.DiskPercent},
	}

	var b strings.Builder
	b.WriteString(styleHeading.Render("Trends"))
	b.WriteString("\n")
	for _, r := range rows {
		spark := Sparkline(SparklineConfig{Data: r.data, Width: sparkWidth, Min: 0, Max: 100, Color: r.color})
		fmt.Fprintf(&b, "%-5s %s %s\n", r.label, spark, styleMuted.Render(fmt.Sprintf("avg %5.1f%%", mean(r.data))))
	}

	b.WriteString("\n")
	b.WriteString(styleHeading.Render("Latest"))
	b.WriteString("\n")
	gaugeWidth := width - 14
	for _, r := range rows {
		danger := 90.0
		if r.label == "CPU" && threshold > 0 {
			danger = threshold
		}
		b.WriteString(Gauge(GaugeConfig{Label: fmt.Sprintf("%-5s", r.label), Percent: r.now, Width: gaugeWidth, Danger: danger}))
		b.WriteString("\n")
	}
	return b.String()
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}
