// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// UNICODE: everything here counts runes or display cells, never bytes, so
// translated CJK text is never cut mid-character.

// TruncateRunes truncates s to at most maxRunes runes, appending "..." when
// something was cut.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// TruncateWidth truncates s to maxWidth display cells with a trailing "...".
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// StringWidth returns the display width of s.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// PadWidth right-pads s with spaces up to width display cells.
func PadWidth(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// CellSlice returns the part of plain string s that covers display columns
// [from, to). A wide rune straddling either edge is replaced by spaces so the
// result is exactly to-from cells wide whenever s reaches that far.
// A negative to means "until the end of s".
func CellSlice(s string, from, to int) string {
	if from < 0 {
		from = 0
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		if to >= 0 && col >= to {
			break
		}
		w := runewidth.RuneWidth(r)
		next := col + w
		switch {
		case next <= from:
		case col < from:
			// Straddles the left edge.
			end := next
			if to >= 0 && end > to {
				end = to
			}
			b.WriteString(strings.Repeat(" ", end-from))
		case to >= 0 && next > to:
			// Straddles the right edge.
			b.WriteString(strings.Repeat(" ", to-col))
		default:
			b.WriteRune(r)
		}
		col = next
	}
	return b.String()
}

// SafeSubstring returns runes [start, end) of s, clamping out-of-range
// indices. A negative end means "until the end".
func SafeSubstring(s string, start, end int) string {
	runes := []rune(s)
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		return ""
	}
	if end < 0 || end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}
