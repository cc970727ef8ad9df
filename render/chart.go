package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"gitlab.com/tinyland/lab/autosysmon/collectors"
)

// ErrNoData is returned when there are no records to chart.
var ErrNoData = errors.New("render: no data available to plot")

// Series colours, matching the terminal palette.
var (
	ColorCPU  = color.NRGBA{R: 0xEF, G: 0x44, B: 0x44, A: 0xFF}
	ColorRAM  = color.NRGBA{R: 0x3B, G: 0x82, B: 0xF6, A: 0xFF}
	ColorDisk = color.NRGBA{R: 0x22, G: 0xC5, B: 0x5E, A: 0xFF}

	colorBackground = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	colorGrid       = color.NRGBA{R: 0xE5, G: 0xE7, B: 0xEB, A: 0xFF}
	colorAxis       = color.NRGBA{R: 0x6B, G: 0x72, B: 0x80, A: 0xFF}
	colorText       = color.NRGBA{R: 0x1F, G: 0x29, B: 0x37, A: 0xFF}
	colorThreshold  = color.NRGBA{R: 0xB9, G: 0x1C, B: 0x1C, A: 0xFF}
)

// Plot margins in pixels around each panel's plotting area.
const (
	marginLeft   = 48
	marginRight  = 16
	marginTop    = 26
	marginBottom = 30
	headerHeight = 30
)

// ChartConfig controls PNG chart generation.
type ChartConfig struct {
	// OutputDir receives the PNG files. Default: current directory.
	OutputDir string
	// Width and Height of the whole image in pixels.
	Width  int // Default: 1200
	Height int // Default: 900
	// Threshold draws a dashed alert line on CPU plots. 0 hides it.
	Threshold float64
	// Days is the lookback shown in chart titles.
	Days int
	// Now stamps output file names. Default: time.Now.
	Now func() time.Time
}

func (c ChartConfig) withDefaults() ChartConfig {
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.Width <= 0 {
		c.Width = 1200
	}
	if c.Height <= 0 {
		c.Height = 900
	}
	if c.Days <= 0 {
		c.Days = 1
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Series is one line on a panel.
type Series struct {
	Label  string
	Color  color.NRGBA
	Values []float64
}

// panel describes one plotting area.
type panel struct {
	title     string
	times     []time.Time
	series    []Series
	threshold float64
}

// PlotUsageTrends renders CPU, RAM and disk usage as three stacked panels and
// writes usage_plot_<timestamp>.png into cfg.OutputDir. Returns the path.
func PlotUsageTrends(records []collectors.MetricRecord, cfg ChartConfig) (string, error) {
	if len(records) == 0 {
		return "", ErrNoData
	}
	cfg = cfg.withDefaults()
	times, cpu, ram, disk := columns(records)

	canvas := imaging.New(cfg.Width, cfg.Height, colorBackground)
	drawText(canvas, fmt.Sprintf("System Resource Usage - Last %d Day(s)", cfg.Days), marginLeft, 20, colorText)

	panelH := (cfg.Height - headerHeight) / 3
	panels := []panel{
		{"CPU Usage Over Time (%)", times, []Series{{"CPU Usage", ColorCPU, cpu}}, cfg.Threshold},
		{"RAM Usage Over Time (%)", times, []Series{{"RAM Usage", ColorRAM, ram}}, 0},
		{"Disk Usage Over Time (%)", times, []Series{{"Disk Usage", ColorDisk, disk}}, 0},
	}
	for i, p := range panels {
		img := drawPanel(cfg.Width, panelH, p)
		canvas = imaging.Paste(canvas, img, image.Pt(0, headerHeight+i*panelH))
	}

	return savePNG(canvas, cfg.OutputDir, "usage_plot_"+cfg.Now().Format("20060102_150405")+".png")
}

// PlotResourceComparison renders all three metrics on one panel and writes
// resource_comparison_<timestamp>.png into cfg.OutputDir. Returns the path.
func PlotResourceComparison(records []collectors.MetricRecord, cfg ChartConfig) (string, error) {
	if len(records) == 0 {
		return "", ErrNoData
	}
	cfg = cfg.withDefaults()
	times, cpu, ram, disk := columns(records)

	canvas := imaging.New(cfg.Width, cfg.Height, colorBackground)
	drawText(canvas, fmt.Sprintf("System Resource Usage Comparison - Last %d Day(s)", cfg.Days), marginLeft, 20, colorText)

	img := drawPanel(cfg.Width, cfg.Height-headerHeight, panel{
		title: "Usage (%)",
		times: times,
		series: []Series{
			{"CPU Usage", ColorCPU, cpu},
			{"RAM Usage", ColorRAM, ram},
			{"Disk Usage", ColorDisk, disk},
		},
		threshold: cfg.Threshold,
	})
	canvas = imaging.Paste(canvas, img, image.Pt(0, headerHeight))

	return savePNG(canvas, cfg.OutputDir, "resource_comparison_"+cfg.Now().Format("20060102_150405")+".png")
}

func columns(records []collectors.MetricRecord) (times []time.Time, cpu, ram, disk []float64) {
	times = make([]time.Time, len(records))
	cpu = make([]float64, len(records))
	ram = make([]float64, len(records))
	disk = make([]float64, len(records))
	for i, r := range records {
		times[i] = r.Timestamp
		cpu[i] = r.CPUPercent
		ram[i] = r.MemoryPercent
		disk[i] = r.DiskPercent
	}
	return times, cpu, ram, disk
}

// plotArea maps data coordinates to pixels inside a panel.
type plotArea struct {
	x0, y0, x1, y1 int // inclusive pixel bounds
	tMin, tMax     time.Time
}

func newPlotArea(w, h int, times []time.Time) plotArea {
	a := plotArea{
		x0: marginLeft,
		y0: marginTop,
		x1: w - marginRight - 1,
		y1: h - marginBottom - 1,
	}
	if len(times) > 0 {
		a.tMin, a.tMax = times[0], times[0]
		for _, t := range times {
			if t.Before(a.tMin) {
				a.tMin = t
			}
			if t.After(a.tMax) {
				a.tMax = t
			}
		}
	}
	return a
}

// x returns the column for t. A single instant is centred.
func (a plotArea) x(t time.Time) int {
	span := a.tMax.Sub(a.tMin)
	if span <= 0 {
		return (a.x0 + a.x1) / 2
	}
	frac := float64(t.Sub(a.tMin)) / float64(span)
	return a.x0 + int(math.Round(frac*float64(a.x1-a.x0)))
}

// y returns the row for a percentage; the axis is fixed at 0-100 and
// out-of-range values are pinned to the edge. NaN sits on the baseline.
func (a plotArea) y(v float64) int {
	if math.IsNaN(v) {
		v = 0
	}
	v = math.Max(0, math.Min(100, v))
	return a.y1 - int(math.Round(v/100*float64(a.y1-a.y0)))
}

func drawPanel(w, h int, p panel) *image.NRGBA {
	img := imaging.New(w, h, colorBackground)
	a := newPlotArea(w, h, p.times)

	// Horizontal grid and y labels every 20%.
	for v := 0; v <= 100; v += 20 {
		y := a.y(float64(v))
		hline(img, a.x0, a.x1, y, colorGrid, 0)
		drawText(img, fmt.Sprintf("%3d", v), 8, y+4, colorAxis)
	}

	// Axes.
	vline(img, a.x0, a.y0, a.y1, colorAxis)
	hline(img, a.x0, a.x1, a.y1, colorAxis, 0)

	// Time labels.
	for _, tick := range timeTicks(a.tMin, a.tMax, 5) {
		x := a.x(tick)
		vline(img, x, a.y1, a.y1+4, colorAxis)
		label := tickLabel(tick, a.tMax.Sub(a.tMin))
		drawText(img, label, x-len(label)*7/2, a.y1+18, colorAxis)
	}

	if p.threshold > 0 {
		hline(img, a.x0, a.x1, a.y(p.threshold), colorThreshold, 6)
	}

	for _, s := range p.series {
		drawSeries(img, a, p.times, s)
	}

	drawText(img, p.title, a.x0, 16, colorText)
	drawLegend(img, a, p)
	return img
}

func drawSeries(img *image.NRGBA, a plotArea, times []time.Time, s Series) {
	n := len(s.Values)
	if len(times) < n {
		n = len(times)
	}
	if n == 0 {
		return
	}
	if n == 1 {
		x, y := a.x(times[0]), a.y(s.Values[0])
		for dx := -2; dx <= 2; dx++ {
			for dy := -2; dy <= 2; dy++ {
				img.SetNRGBA(x+dx, y+dy, s.Color)
			}
		}
		return
	}
	for i := 1; i < n; i++ {
		x0, y0 := a.x(times[i-1]), a.y(s.Values[i-1])
		x1, y1 := a.x(times[i]), a.y(s.Values[i])
		line(img, x0, y0, x1, y1, s.Color)
		line(img, x0, y0+1, x1, y1+1, s.Color)
	}
}

func drawLegend(img *image.NRGBA, a plotArea, p panel) {
	labels := make([]string, 0, len(p.series)+1)
	colors := make([]color.NRGBA, 0, len(p.series)+1)
	for _, s := range p.series {
		labels = append(labels, s.Label)
		colors = append(colors, s.Color)
	}
	if p.threshold > 0 {
		labels = append(labels, fmt.Sprintf("Alert Threshold (%.0f%%)", p.threshold))
		colors = append(colors, colorThreshold)
	}

	y := 16
	x := a.x1
	for i := len(labels) - 1; i >= 0; i-- {
		x -= len(labels[i])*7 + 22
		for dx := 0; dx < 12; dx++ {
			for dy := -6; dy <= -3; dy++ {
				img.SetNRGBA(x+dx, y+dy, colors[i])
			}
		}
		drawText(img, labels[i], x+16, y, colorText)
	}
}

// timeTicks returns up to n evenly spaced instants across [from, to].
func timeTicks(from, to time.Time, n int) []time.Time {
	span := to.Sub(from)
	if span <= 0 || n < 2 {
		return []time.Time{from}
	}
	ticks := make([]time.Time, n)
	for i := 0; i < n; i++ {
		ticks[i] = from.Add(time.Duration(float64(span) * float64(i) / float64(n-1)))
	}
	return ticks
}

// tickLabel shows the clock time, adding the date when the span exceeds a day.
func tickLabel(t time.Time, span time.Duration) string {
	if span > 24*time.Hour {
		return t.Format("01-02 15:04")
	}
	return t.Format("15:04")
}

func drawText(img *image.NRGBA, s string, x, y int, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// hline draws a horizontal line; dash > 0 leaves gaps of that length.
func hline(img *image.NRGBA, x0, x1, y int, c color.NRGBA, dash int) {
	for x := x0; x <= x1; x++ {
		if dash > 0 && ((x-x0)/dash)%2 == 1 {
			continue
		}
		img.SetNRGBA(x, y, c)
	}
}

func vline(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	for y := y0; y <= y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}

// line draws a one-pixel Bresenham line.
func line(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		img.SetNRGBA(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// savePNG encodes img to dir/name through a temp file and rename.
func savePNG(img image.Image, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("render: create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".tmp-"+name+"-*")
	if err != nil {
		return "", fmt.Errorf("render: create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	// Clean up the temp file on any failure path.
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if err := imaging.Encode(tmp, img, imaging.PNG); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("render: encode %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("render: close temp for %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return "", fmt.Errorf("render: chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("render: rename temp for %s: %w", name, err)
	}

	success = true
	return path, nil
}
