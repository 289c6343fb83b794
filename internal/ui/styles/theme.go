// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds all the styled components for the editor.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// EDITOR STYLES
	// ==========================================================================

	Text      lipgloss.Style
	Cursor    lipgloss.Style
	Selection lipgloss.Style
	Loading   lipgloss.Style
	Filler    lipgloss.Style

	// ==========================================================================
	// PANEL STYLES
	// ==========================================================================

	Panel       lipgloss.Style
	PanelTitle  lipgloss.Style
	PanelButton lipgloss.Style
	PanelCopied lipgloss.Style
	PanelBody   lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar     lipgloss.Style
	ModeTranslate lipgloss.Style
	ModeEditor    lipgloss.Style
	StatusLabel   lipgloss.Style
	StatusValue   lipgloss.Style
	StatusError   lipgloss.Style
	StatusInfo    lipgloss.Style
	Spinner       lipgloss.Style
	ShortcutKey   lipgloss.Style
	ShortcutDesc  lipgloss.Style
}

// NewTheme creates a theme. name is "auto", "dark" or "light"; auto asks the
// terminal for its background.
func NewTheme(name string) *Theme {
	colorProfile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(name) {
	case ThemeDark:
		isDark = true
	case ThemeLight:
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Editor
	t.Text = lipgloss.NewStyle().Foreground(TextPrimary)

	t.Cursor = lipgloss.NewStyle().Reverse(true)

	t.Selection = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SelectionBg)

	// The loading highlight replaces the selection color while a
	// translation is in flight.
	t.Loading = lipgloss.NewStyle().
		Foreground(Amber).
		Background(AmberDeep).
		Bold(true)

	t.Filler = lipgloss.NewStyle().Foreground(TextMuted)

	// Panel
	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)

	t.PanelTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.PanelButton = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.PanelCopied = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.PanelBody = lipgloss.NewStyle().
		Foreground(TextPrimary)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary)

	t.ModeTranslate = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Cyan).
		Bold(true).
		Padding(0, 1)

	t.ModeEditor = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Amber).
		Bold(true).
		Padding(0, 1)

	t.StatusLabel = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StatusValue = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.StatusInfo = lipgloss.NewStyle().
		Foreground(Emerald)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// ModeBadge returns the badge style for a target mode name.
func (t *Theme) ModeBadge(mode string) lipgloss.Style {
	if mode == "editing_assistant" {
		return t.ModeEditor
	}
	return t.ModeTranslate
}
