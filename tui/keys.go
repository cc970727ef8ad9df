package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all key bindings for the watch view.
// It implements the help.KeyMap interface for bubbles/help integration.
type keyMap struct {
	Quit       key.Binding
	NextWindow key.Binding
	Window1    key.Binding
	Window2    key.Binding
	Window3    key.Binding
	Refresh    key.Binding
	Help       key.Binding
}

// ShortHelp returns the compact set of keybindings shown by default in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.NextWindow, k.Refresh, k.Quit}
}

// FullHelp returns the expanded keybinding groups shown when help is toggled.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextWindow, k.Window1, k.Window2, k.Window3},
		{k.Refresh, k.Help, k.Quit},
	}
}

// keys holds the default key bindings used by the watch view.
var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	NextWindow: key.NewBinding(key.WithKeys("tab", "w"), key.WithHelp("tab", "next window")),
	Window1:    key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "1h")),
	Window2:    key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "24h")),
	Window3:    key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "7d")),
	Refresh:    key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
	Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// Bindings returns every key binding of the watch view, in help order.
func Bindings() []key.Binding {
	var out []key.Binding
	for _, group := range keys.FullHelp() {
		out = append(out, group...)
	}
	return out
}
