// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across llmtrans packages.
//
// # Key Functions
//
// Display Width:
//   - TruncateRunes: rune-safe truncation with ellipsis
//   - TruncateWidth: cell-width truncation (CJK counts as two cells)
//   - CellSlice: cut a plain string by display columns, used when overlaying the panel
//   - PadWidth: right-pad a string to a display width
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	preview := util.TruncateRunes(entry.Source, 40)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
