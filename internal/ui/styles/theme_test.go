// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// THEME CREATION TESTS
// =============================================================================

func TestNewTheme_Pinned(t *testing.T) {
	tests := []struct {
		name string
		dark bool
	}{
		{ThemeDark, true},
		{ThemeLight, false},
		{"DARK", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			theme := NewTheme(tt.name)
			if theme == nil {
				t.Fatal("NewTheme() returned nil")
			}
			if theme.IsDark != tt.dark {
				t.Errorf("IsDark = %v, want %v", theme.IsDark, tt.dark)
			}
			if lipgloss.HasDarkBackground() != tt.dark {
				t.Errorf("lipgloss background not pinned to dark=%v", tt.dark)
			}
		})
	}
}

func TestThemeInitStyles(t *testing.T) {
	theme := NewTheme(ThemeDark)

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Text", theme.Text},
		{"Selection", theme.Selection},
		{"Loading", theme.Loading},
		{"Panel", theme.Panel},
		{"PanelTitle", theme.PanelTitle},
		{"StatusBar", theme.StatusBar},
		{"ModeTranslate", theme.ModeTranslate},
		{"ModeEditor", theme.ModeEditor},
	}

	for _, s := range styles {
		if !strings.Contains(s.style.Render("test"), "test") {
			t.Errorf("%s style lost its content", s.name)
		}
	}
}

func TestPanelStyle_HasBorder(t *testing.T) {
	theme := NewTheme(ThemeDark)

	out := theme.Panel.Render("翻译结果")
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("panel should render 3 lines (border, body, border), got %d", len(lines))
	}
	if w := lipgloss.Width(lines[1]); w != lipgloss.Width("翻译结果")+4 {
		t.Errorf("body row width = %d, want content + border + padding", w)
	}
}

func TestModeBadge(t *testing.T) {
	theme := NewTheme(ThemeLight)

	if got := theme.ModeBadge("editing_assistant").Render("x"); got != theme.ModeEditor.Render("x") {
		t.Error("editing mode should use the editor badge")
	}
	if got := theme.ModeBadge("translate").Render("x"); got != theme.ModeTranslate.Render("x") {
		t.Error("translate mode should use the translate badge")
	}
	if got := theme.ModeBadge("").Render("x"); got != theme.ModeTranslate.Render("x") {
		t.Error("unknown mode should fall back to the translate badge")
	}
}

func TestRenderHelpers(t *testing.T) {
	if !strings.Contains(RenderSuccess("copied"), IndicatorSuccess) {
		t.Error("RenderSuccess should include the checkmark")
	}
	if !strings.Contains(RenderError("failed"), IndicatorError) {
		t.Error("RenderError should include the X mark")
	}
	if !strings.Contains(RenderWarning("careful"), "careful") {
		t.Error("RenderWarning should include the message")
	}
}
