package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	NextVersion key.Binding
	PrevVersion key.Binding
	Open        key.Binding
	Back        key.Binding
	Hidden      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	NextVersion: key.NewBinding(
		key.WithKeys("]", "tab"),
		key.WithHelp("]/tab", "next version"),
	),
	PrevVersion: key.NewBinding(
		key.WithKeys("[", "shift+tab"),
		key.WithHelp("[/S-tab", "prev version"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "show diff"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Hidden: key.NewBinding(
		key.WithKeys("h"),
		key.WithHelp("h", "show/hide drafts & own"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
