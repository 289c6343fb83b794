// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package editor

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the editor's keyboard bindings.
type KeyMap struct {
	Left        key.Binding
	Right       key.Binding
	Up          key.Binding
	Down        key.Binding
	SelectLeft  key.Binding
	SelectRight key.Binding
	SelectUp    key.Binding
	SelectDown  key.Binding
	Home        key.Binding
	End         key.Binding
	SelectHome  key.Binding
	SelectEnd   key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	SelectAll   key.Binding

	Backspace key.Binding
	Delete    key.Binding
	Newline   key.Binding
	Tab       key.Binding

	Translate    key.Binding
	ToggleTarget key.Binding
	ToggleMode   key.Binding
	Copy         key.Binding
	Escape       key.Binding
	Save         key.Binding
	Quit         key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Left:        key.NewBinding(key.WithKeys("left")),
		Right:       key.NewBinding(key.WithKeys("right")),
		Up:          key.NewBinding(key.WithKeys("up")),
		Down:        key.NewBinding(key.WithKeys("down")),
		SelectLeft:  key.NewBinding(key.WithKeys("shift+left")),
		SelectRight: key.NewBinding(key.WithKeys("shift+right")),
		SelectUp:    key.NewBinding(key.WithKeys("shift+up")),
		SelectDown:  key.NewBinding(key.WithKeys("shift+down")),
		Home:        key.NewBinding(key.WithKeys("home")),
		End:         key.NewBinding(key.WithKeys("end")),
		SelectHome:  key.NewBinding(key.WithKeys("shift+home")),
		SelectEnd:   key.NewBinding(key.WithKeys("shift+end")),
		PageUp:      key.NewBinding(key.WithKeys("pgup")),
		PageDown:    key.NewBinding(key.WithKeys("pgdown")),
		SelectAll: key.NewBinding(
			key.WithKeys("ctrl+a"),
			key.WithHelp("C-a", "select all"),
		),

		Backspace: key.NewBinding(key.WithKeys("backspace")),
		Delete:    key.NewBinding(key.WithKeys("delete")),
		Newline:   key.NewBinding(key.WithKeys("enter")),
		Tab:       key.NewBinding(key.WithKeys("tab")),

		Translate: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "translate selection"),
		),
		ToggleTarget: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "panel / replace"),
		),
		ToggleMode: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "translate / edit"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy result"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "close panel / cancel"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "save"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in help output.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Translate, k.ToggleTarget, k.ToggleMode, k.Copy, k.Escape, k.Save, k.Quit}
}
