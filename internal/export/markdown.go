// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/boytm/browser-llm-translation-plugin/internal/storage"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports history to Markdown with YAML frontmatter.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts entries to Markdown. Source and result are quoted so
// markup inside them does not change the document's structure.
func (e *MarkdownExporter) Export(entries []storage.Entry) ([]byte, error) {
	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(e.options.Title))
		fmt.Fprintf(&sb, "entries: %d\n", len(entries))
		fmt.Fprintf(&sb, "exported: %s\n", e.options.now().Format(time.RFC3339))
		sb.WriteString("generator: llmtrans\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(e.options.Title))
	if len(entries) == 0 {
		sb.WriteString("*No history.*\n")
		return []byte(sb.String()), nil
	}

	for i, entry := range entries {
		fmt.Fprintf(&sb, "## %s\n\n", formatTimestamp(entry.CreatedAt))

		if e.options.IncludeMetadata {
			fmt.Fprintf(&sb, "- **Mode**: %s\n", entry.Mode)
			fmt.Fprintf(&sb, "- **Target**: %s\n", entry.Target)
			if entry.Model != "" {
				fmt.Fprintf(&sb, "- **Model**: %s\n", entry.Model)
			}
			fmt.Fprintf(&sb, "- **Duration**: %s\n", formatDuration(entry.DurationMs))
			sb.WriteString("\n")
		}

		sb.WriteString("### Source\n\n")
		sb.WriteString(quote(entry.Source))
		sb.WriteString("\n")

		if entry.Failed() {
			sb.WriteString("### Error\n\n")
			sb.WriteString(quote(entry.Error))
		} else {
			sb.WriteString("### Result\n\n")
			sb.WriteString(quote(entry.Result))
		}

		if i < len(entries)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// quote renders s as a Markdown blockquote.
func quote(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	var sb strings.Builder
	for _, line := range lines {
		if line == "" {
			sb.WriteString(">\n")
			continue
		}
		sb.WriteString("> " + line + "\n")
	}
	return sb.String()
}

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only escape characters that would break formatting in titles/headings
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML escapes special YAML characters in values.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
