package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap lists the tree view bindings.
type KeyMap struct {
	Up, Down, Top, Bottom, PageUp, PageDown key.Binding
	Expand, Collapse, OpenAll, CloseAll      key.Binding
	Select, SelectAll, DeselectAll           key.Binding
	Create, CreateSibling, Rename, Delete    key.Binding
	MoveUp, MoveDown                         key.Binding
	Cut, Copy, Paste, PasteAfter             key.Binding
	Search, NextMatch                        key.Binding
	Yank, Refresh, Details, NextTree, Help   key.Binding
	Quit                                     key.Binding
}

// DefaultKeyMap returns vim-style bindings with arrow-key alternatives.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:            key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:          key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Top:           key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:        key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		PageUp:        key.NewBinding(key.WithKeys("ctrl+u", "pgup"), key.WithHelp("ctrl+u", "page up")),
		PageDown:      key.NewBinding(key.WithKeys("ctrl+d", "pgdown"), key.WithHelp("ctrl+d", "page down")),
		Expand:        key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "open")),
		Collapse:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "close")),
		OpenAll:       key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "open all")),
		CloseAll:      key.NewBinding(key.WithKeys("W"), key.WithHelp("W", "close all")),
		Select:        key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "select")),
		SelectAll:     key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "select all")),
		DeselectAll:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear selection")),
		Create:        key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add child")),
		CreateSibling: key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "add sibling")),
		Rename:        key.NewBinding(key.WithKeys("r", "f2"), key.WithHelp("r", "rename")),
		Delete:        key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		MoveUp:        key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move up")),
		MoveDown:      key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move down")),
		Cut:           key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "cut")),
		Copy:          key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy")),
		Paste:         key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "paste into")),
		PasteAfter:    key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "paste after")),
		Search:        key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		NextMatch:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next match")),
		Yank:          key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yank json")),
		Refresh:       key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reload")),
		Details:       key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "details")),
		NextTree:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tree")),
		Help:          key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Expand, k.Select, k.Create, k.Rename, k.Delete, k.Search, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.PageUp, k.PageDown},
		{k.Expand, k.Collapse, k.OpenAll, k.CloseAll, k.Select, k.SelectAll, k.DeselectAll},
		{k.Create, k.CreateSibling, k.Rename, k.Delete, k.MoveUp, k.MoveDown},
		{k.Cut, k.Copy, k.Paste, k.PasteAfter, k.Search, k.NextMatch},
		{k.Yank, k.Refresh, k.Details, k.NextTree, k.Help, k.Quit},
	}
}
