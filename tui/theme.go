package tui

import (
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/autosysmon/render"
)

// Styles used throughout the watch view.
var (
	styleActiveTab   lipgloss.Style
	styleInactiveTab lipgloss.Style
	styleHeader      lipgloss.Style
	styleFooter      lipgloss.Style
	styleContent     lipgloss.Style
	styleTitle       lipgloss.Style
	styleAlert       lipgloss.Style
	styleError       lipgloss.Style
)

func init() {
	styleActiveTab = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#7C3AED")).
		Padding(0, 2)

	styleInactiveTab = lipgloss.NewStyle().
		Foreground(render.ColorMuted).
		Padding(0, 2)

	styleHeader = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(render.ColorMuted).
		MarginBottom(1)

	styleFooter = lipgloss.NewStyle().
		Foreground(render.ColorMuted).
		MarginTop(1)

	styleContent = lipgloss.NewStyle().
		Padding(0, 2)

	styleTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(render.ColorAccent)

	styleAlert = lipgloss.NewStyle().
		Foreground(render.ColorDanger)

	styleError = lipgloss.NewStyle().
		Foreground(render.ColorWarning)
}
