// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/boytm/browser-llm-translation-plugin/internal/util"
)

// =============================================================================
// HISTORY LIST FORMATTING
// =============================================================================

// FormatList formats entries as a table: short ID, time, mode and a preview
// of the source. Widths are display cells so CJK text lines up.
func FormatList(entries []Entry) string {
	if len(entries) == 0 {
		return "No history found."
	}

	var sb strings.Builder
	sb.WriteString(util.PadWidth("ID", 8) + " " + util.PadWidth("Created", 16) + " " +
		util.PadWidth("Mode", 17) + " Source\n")
	sb.WriteString(strings.Repeat("-", 72) + "\n")

	for _, e := range entries {
		mode := e.Mode
		if e.Failed() {
			mode += " (failed)"
		}
		sb.WriteString(util.PadWidth(shortID(e.ID), 8) + " " +
			util.PadWidth(e.CreatedAt.Format("2006-01-02 15:04"), 16) + " " +
			util.PadWidth(mode, 17) + " " +
			Preview(e.Source, 30) + "\n")
	}
	return sb.String()
}

// Preview flattens whitespace and truncates s to width display cells.
func Preview(s string, width int) string {
	return util.TruncateWidth(strings.Join(strings.Fields(s), " "), width)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// =============================================================================
// ENTRY EXPORT
// =============================================================================

// Markdown renders one entry with its metadata, source and result.
func (e Entry) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# Translation " + shortID(e.ID) + "\n\n")
	sb.WriteString("Created: " + e.CreatedAt.Format(time.RFC3339) + "  \n")
	fmt.Fprintf(&sb, "Mode: %s, target: %s, streamed: %t  \n", e.Mode, e.Target, e.Streamed)
	if e.Model != "" {
		sb.WriteString("Model: " + e.Model + "  \n")
	}
	fmt.Fprintf(&sb, "Duration: %dms\n\n", e.DurationMs)

	sb.WriteString("## Source\n\n")
	sb.WriteString(e.Source + "\n\n")

	if e.Failed() {
		sb.WriteString("## Error\n\n")
		sb.WriteString(e.Error + "\n")
		return sb.String()
	}
	sb.WriteString("## Result\n\n")
	sb.WriteString(e.Result + "\n")
	return sb.String()
}
