// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and lipgloss styles of the llmtrans editor.

All colors are lipgloss.AdaptiveColor values, so they follow the terminal's
background. NewTheme pins that choice ("dark", "light") or detects it
("auto") through termenv.

# Usage

	theme := styles.NewTheme(cfg.UI.Theme)
	view := theme.Panel.Render(theme.PanelTitle.Render("翻译结果"))

Selection and loading highlights are separate styles: while a translation
runs, the selected text is drawn with Theme.Loading instead of
Theme.Selection.
*/
package styles
