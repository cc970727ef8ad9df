// Package tui implements the live watch dashboard: current gauges, trend
// sparklines over a selectable window, and the most recent alerts, refreshed
// whenever the daemon writes to the data directory.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/autosysmon/collectors"
	"gitlab.com/tinyland/lab/autosysmon/logstore"
	"gitlab.com/tinyland/lab/autosysmon/render"
)

// Source reads history for the dashboard. *logstore.Store satisfies it.
type Source interface {
	ReadMetrics(lookback time.Duration) ([]collectors.MetricRecord, error)
	ReadAlerts(lookback time.Duration) ([]logstore.AlertRecord, error)
}

// window is one selectable lookback.
type window struct {
	label    string
	lookback time.Duration
}

var windows = []window{
	{"1h", time.Hour},
	{"24h", 24 * time.Hour},
	{"7d", 7 * 24 * time.Hour},
}

// maxAlerts is how many recent alerts the dashboard lists.
const maxAlerts = 5

// Options configures the dashboard.
type Options struct {
	// Threshold colours the CPU gauge red above this value.
	Threshold float64
	// Changes triggers a reload when it receives. May be nil.
	Changes <-chan struct{}
	// RefreshEvery reloads on a timer as a fallback. Default: 30s.
	RefreshEvery time.Duration
}

type dataMsg struct {
	records []collectors.MetricRecord
	alerts  []logstore.AlertRecord
	err     error
	at      time.Time
}

type changeMsg struct{}

type tickMsg time.Time

// Model is the Bubbletea model for the watch view.
type Model struct {
	src  Source
	opts Options

	window  int
	records []collectors.MetricRecord
	alerts  []logstore.AlertRecord
	err     error

	help        help.Model
	width       int
	height      int
	lastUpdated time.Time
	ready       bool
}

// NewModel returns a Model showing the 1h window.
func NewModel(src Source, opts Options) Model {
	if opts.RefreshEvery <= 0 {
		opts.RefreshEvery = 30 * time.Second
	}
	return Model{src: src, opts: opts, help: help.New()}
}

// Init implements tea.Model. It loads data and starts both refresh sources.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.waitForChange(), m.tick())
}

// load reads the current window in the background.
func (m Model) load() tea.Cmd {
	src, lookback := m.src, windows[m.window].lookback
	return func() tea.Msg {
		records, err := src.ReadMetrics(lookback)
		alerts, aerr := src.ReadAlerts(lookback)
		if err == nil {
			err = aerr
		}
		return dataMsg{records: records, alerts: alerts, err: err, at: time.Now()}
	}
}

func (m Model) waitForChange() tea.Cmd {
	if m.opts.Changes == nil {
		return nil
	}
	ch := m.opts.Changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changeMsg{}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.RefreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.NextWindow):
			m.window = (m.window + 1) % len(windows)
			return m, m.load()
		case key.Matches(msg, keys.Window1):
			m.window = 0
			return m, m.load()
		case key.Matches(msg, keys.Window2):
			m.window = 1
			return m, m.load()
		case key.Matches(msg, keys.Window3):
			m.window = 2
			return m, m.load()
		case key.Matches(msg, keys.Refresh):
			return m, m.load()
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case dataMsg:
		m.records = msg.records
		m.alerts = msg.alerts
		m.err = msg.err
		m.lastUpdated = msg.at

	case changeMsg:
		return m, tea.Batch(m.load(), m.waitForChange())

	case tickMsg:
		return m, tea.Batch(m.load(), m.tick())
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		styleContent.Width(m.width).Render(m.renderContent()),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	tabs := []string{styleTitle.Render("autosysmon") + "  "}
	for i, w := range windows {
		if i == m.window {
			tabs = append(tabs, styleActiveTab.Render(w.label))
		} else {
			tabs = append(tabs, styleInactiveTab.Render(w.label))
		}
	}
	return styleHeader.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

func (m Model) renderContent() string {
	inner := m.width - 4
	if inner < 40 {
		inner = 40
	}

	var b strings.Builder
	if len(m.records) == 0 {
		b.WriteString(fmt.Sprintf("No samples in the last %s.\n", windows[m.window].label))
	} else {
		b.WriteString(render.Trends(m.records, m.opts.Threshold, inner))
		fmt.Fprintf(&b, "\n%d samples\n", len(m.records))
	}

	b.WriteString("\n")
	b.WriteString(styleTitle.Render("Recent alerts"))
	b.WriteString("\n")
	if len(m.alerts) == 0 {
		b.WriteString("none\n")
	} else {
		start := len(m.alerts) - maxAlerts
		if start < 0 {
			start = 0
		}
		for i := len(m.alerts) - 1; i >= start; i-- {
			b.WriteString(styleAlert.Render(logstore.FormatAlert(m.alerts[i])))
			b.WriteString("\n")
		}
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(styleError.Render("read error: " + m.err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderFooter() string {
	footer := m.help.View(keys)
	if !m.lastUpdated.IsZero() {
		footer += fmt.Sprintf("  Updated: %s", m.lastUpdated.Format("15:04:05"))
	}
	return styleFooter.Width(m.width).Render(footer)
}

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, src Source, opts Options) error {
	p := tea.NewProgram(NewModel(src, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
