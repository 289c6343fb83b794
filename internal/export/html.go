// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/boytm/browser-llm-translation-plugin/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports history to a standalone HTML page with embedded CSS.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts entries to HTML. All text is escaped.
func (e *HTMLExporter) Export(entries []storage.Entry) ([]byte, error) {
	var sb strings.Builder
	title := html.EscapeString(e.options.Title)

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html>\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", title)
	sb.WriteString("    <meta name=\"generator\" content=\"llmtrans\">\n")
	sb.WriteString(e.getCSS())
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", e.theme())
	sb.WriteString("    <div class=\"container\">\n")

	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", title)
	fmt.Fprintf(&sb, "            <div class=\"metadata\">%d entries, exported %s</div>\n",
		len(entries), e.options.now().Format(time.RFC3339))
	sb.WriteString("        </header>\n")

	sb.WriteString("        <main>\n")
	if len(entries) == 0 {
		sb.WriteString("            <p class=\"empty\">No history.</p>\n")
	}
	for i := range entries {
		sb.WriteString(e.renderEntry(&entries[i]))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) theme() string {
	if e.options.Theme == "dark" {
		return "dark"
	}
	return "light"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderEntry(entry *storage.Entry) string {
	var sb strings.Builder

	class := "entry"
	if entry.Failed() {
		class += " failed"
	}
	fmt.Fprintf(&sb, "            <section class=\"%s\" id=\"%s\">\n", class, html.EscapeString(entry.ID))

	sb.WriteString("                <div class=\"entry-header\">\n")
	fmt.Fprintf(&sb, "                    <span class=\"timestamp\">%s</span>\n", formatTimestamp(entry.CreatedAt))
	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "                    <span class=\"tag\">%s</span>\n", html.EscapeString(entry.Mode))
		fmt.Fprintf(&sb, "                    <span class=\"tag\">%s</span>\n", html.EscapeString(entry.Target))
		if entry.Model != "" {
			fmt.Fprintf(&sb, "                    <span class=\"tag\">%s</span>\n", html.EscapeString(entry.Model))
		}
		fmt.Fprintf(&sb, "                    <span class=\"stat\">%s</span>\n", formatDuration(entry.DurationMs))
	}
	sb.WriteString("                </div>\n")

	fmt.Fprintf(&sb, "                <div class=\"source\">%s</div>\n", formatText(entry.Source))
	if entry.Failed() {
		fmt.Fprintf(&sb, "                <div class=\"error\">%s</div>\n", formatText(entry.Error))
	} else {
		fmt.Fprintf(&sb, "                <div class=\"result\">%s</div>\n", formatText(entry.Result))
	}

	sb.WriteString("            </section>\n")
	return sb.String()
}

// formatText escapes s and keeps its line breaks.
func formatText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>\n")
}

func (e *HTMLExporter) getCSS() string {
	return `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        .light-theme {
            --bg: #ffffff;
            --panel: #f6f8fa;
            --text: #24292e;
            --muted: #6a737d;
            --border: #e1e4e8;
            --accent: #0366d6;
            --error: #d73a49;
        }

        .dark-theme {
            --bg: #1a1b26;
            --panel: #24283b;
            --text: #c0caf5;
            --muted: #565f89;
            --border: #414868;
            --accent: #7aa2f7;
            --error: #f7768e;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", "PingFang SC", "Microsoft YaHei", sans-serif;
            line-height: 1.6;
            color: var(--text);
            background: var(--bg);
            padding: 20px;
        }

        .container { max-width: 900px; margin: 0 auto; }
        .header { padding: 24px 0; border-bottom: 2px solid var(--border); margin-bottom: 16px; }
        .header h1 { font-size: 26px; }
        .metadata, .timestamp, .stat, .empty { color: var(--muted); font-size: 14px; }

        .entry {
            background: var(--panel);
            border: 1px solid var(--border);
            border-radius: 8px;
            padding: 16px;
            margin-bottom: 16px;
        }
        .entry-header { display: flex; gap: 12px; align-items: center; margin-bottom: 8px; }
        .tag { font-size: 12px; padding: 2px 8px; border-radius: 10px; border: 1px solid var(--accent); color: var(--accent); }
        .source { color: var(--muted); border-left: 3px solid var(--border); padding-left: 12px; margin-bottom: 8px; }
        .result { border-left: 3px solid var(--accent); padding-left: 12px; }
        .error { border-left: 3px solid var(--error); padding-left: 12px; color: var(--error); }
    </style>
`
}
