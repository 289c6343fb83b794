// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes translation history to Markdown, HTML or JSON files.
//
// # Key Types
//
//   - Exporter: converts a list of history entries to one format
//   - Options: title, theme and metadata switches
//
// # Usage
//
//	entries, _ := store.List(ctx, 0)
//	path, err := export.ToFile(entries, "history.html", export.DefaultOptions())
//
// The format is chosen from the file extension by ForPath.
package export
