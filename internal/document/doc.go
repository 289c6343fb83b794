// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package document is an editable text buffer that hosts translation
// sessions. It implements render.Host for the terminal editor.
//
// Positions are rune offsets internally and display cells (column, line)
// externally; wide runes occupy two cells as measured by go-runewidth.
// Captured anchors follow user edits: an edit before an anchored range shifts
// it, an edit that touches it invalidates it.
package document
