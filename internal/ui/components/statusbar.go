// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/boytm/browser-llm-translation-plugin/internal/ui/styles"
	"github.com/boytm/browser-llm-translation-plugin/internal/util"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the editor's translation state.
type Status int

const (
	StatusReady Status = iota
	StatusTranslating
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusTranslating:
		return "Translating"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// StatusBar is the bottom line of the editor.
type StatusBar struct {
	Mode     string // "translate" or "editing_assistant"
	Target   string // "panel" or "replace"
	Stream   bool
	Model    string
	FileName string
	Dirty    bool
	Status   Status
	Message  string // last error or notice
	Width    int

	// Spinner is rendered in place of the status text while translating.
	Spinner string

	theme *styles.Theme
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Mode:   "translate",
		Target: "panel",
		Status: StatusReady,
		Width:  80,
		theme:  theme,
	}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// SetError shows msg as an error until the next SetNotice or ClearMessage.
func (s *StatusBar) SetError(msg string) {
	s.Status = StatusError
	s.Message = msg
}

// SetNotice shows an informational message.
func (s *StatusBar) SetNotice(msg string) {
	if s.Status == StatusError {
		s.Status = StatusReady
	}
	s.Message = msg
}

// ClearMessage removes the message and any error state.
func (s *StatusBar) ClearMessage() {
	if s.Status == StatusError {
		s.Status = StatusReady
	}
	s.Message = ""
}

// View renders the status bar, choosing a layout by width.
func (s *StatusBar) View() string {
	var left, right string
	if s.Width < 60 {
		left, right = s.viewNarrow()
	} else {
		left, right = s.viewWide()
	}

	gap := s.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		// Drop the right side before overflowing.
		right = ""
		gap = s.Width - lipgloss.Width(left)
		if gap < 0 {
			gap = 0
		}
	}

	return s.theme.StatusBar.Width(s.Width).MaxWidth(s.Width).
		Render(left + strings.Repeat(" ", gap) + right)
}

// viewNarrow: [T|P] status
func (s *StatusBar) viewNarrow() (string, string) {
	badge := s.theme.ModeBadge(s.Mode).Render(modeLetter(s.Mode) + "|" + targetLetter(s.Target))
	return badge + " " + s.renderState(s.Width/2), ""
}

// viewWide: TRANSLATE panel stream model file* | status ... shortcuts
func (s *StatusBar) viewWide() (string, string) {
	sep := s.theme.StatusLabel.Render(" | ")

	parts := []string{
		s.theme.ModeBadge(s.Mode).Render(modeLabel(s.Mode)),
		s.theme.StatusValue.Render(s.Target),
	}
	if s.Stream {
		parts = append(parts, s.theme.StatusValue.Render("stream"))
	} else {
		parts = append(parts, s.theme.StatusLabel.Render("buffered"))
	}
	if s.Model != "" {
		parts = append(parts, s.theme.StatusValue.Render(util.TruncateWidth(s.Model, 20)))
	}
	if s.FileName != "" {
		name := util.TruncateWidth(s.FileName, 24)
		if s.Dirty {
			name += "*"
		}
		parts = append(parts, s.theme.StatusLabel.Render(name))
	}

	left := parts[0] + " " + strings.Join(parts[1:], sep)
	left += sep + s.renderState(s.Width/3)
	return left, s.renderShortcuts()
}

func (s *StatusBar) renderState(max int) string {
	switch {
	case s.Status == StatusTranslating && s.Spinner != "":
		return s.Spinner
	case s.Status == StatusError:
		return s.theme.StatusError.Render(util.TruncateWidth(styles.IndicatorError+" "+s.Message, max))
	case s.Message != "":
		return s.theme.StatusInfo.Render(util.TruncateWidth(s.Message, max))
	default:
		return s.theme.StatusLabel.Render(s.Status.String())
	}
}

// renderShortcuts renders keyboard shortcut hints.
func (s *StatusBar) renderShortcuts() string {
	shortcuts := []string{
		s.theme.ShortcutKey.Render("^T") + s.theme.ShortcutDesc.Render("translate"),
		s.theme.ShortcutKey.Render("^R") + s.theme.ShortcutDesc.Render("target"),
		s.theme.ShortcutKey.Render("^E") + s.theme.ShortcutDesc.Render("mode"),
		s.theme.ShortcutKey.Render("^Q") + s.theme.ShortcutDesc.Render("quit"),
	}
	return strings.Join(shortcuts, " ") + " "
}

func modeLabel(mode string) string {
	if mode == "editing_assistant" {
		return "EDIT"
	}
	return "TRANSLATE"
}

func modeLetter(mode string) string {
	return modeLabel(mode)[:1]
}

func targetLetter(target string) string {
	if target == "replace" {
		return "R"
	}
	return "P"
}
