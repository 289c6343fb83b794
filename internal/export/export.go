// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/boytm/browser-llm-translation-plugin/internal/storage"
	"github.com/boytm/browser-llm-translation-plugin/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts history entries to one output format.
type Exporter interface {
	// Export converts entries to the target format and returns the content.
	Export(entries []storage.Entry) ([]byte, error)

	// FileExtension returns the file extension (e.g., ".md", ".html").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// Title heads Markdown and HTML output.
	Title string

	// IncludeMetadata adds mode, target, model and duration per entry.
	IncludeMetadata bool

	// Theme for HTML export ("light" or "dark").
	Theme string

	// Now stamps the export. Tests pin it.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		Title:           "Translation history",
		IncludeMetadata: true,
		Theme:           "light",
		Now:             time.Now,
	}
}

func (o *Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ErrUnknownFormat is returned by ForPath for unsupported extensions.
var ErrUnknownFormat = fmt.Errorf("unknown export format; use .md, .html or .json")

// ForPath picks the exporter matching path's extension.
func ForPath(path string, opts *Options) (Exporter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return NewMarkdownExporter(opts), nil
	case ".html", ".htm":
		return NewHTMLExporter(opts), nil
	case ".json":
		return NewJSONExporter(opts), nil
	default:
		return nil, ErrUnknownFormat
	}
}

// ToFile exports entries to path with owner-only permissions, choosing the
// format by extension. It returns the absolute path written.
func ToFile(entries []storage.Entry, path string, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	exporter, err := ForPath(path, opts)
	if err != nil {
		return "", err
	}

	content, err := exporter.Export(entries)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if err := util.AtomicWriteFile(abs, content, 0600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return abs, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// formatDuration formats milliseconds as a human-readable duration.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
