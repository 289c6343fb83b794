// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/boytm/browser-llm-translation-plugin/internal/storage"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports history to JSON. Entries are always complete; the
// metadata switch does not apply.
type JSONExporter struct {
	options *Options
}

type jsonDocument struct {
	Title      string          `json:"title"`
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Entries    []storage.Entry `json:"entries"`
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts entries to an indented JSON document.
func (e *JSONExporter) Export(entries []storage.Entry) ([]byte, error) {
	if entries == nil {
		entries = []storage.Entry{}
	}
	return json.MarshalIndent(jsonDocument{
		Title:      e.options.Title,
		ExportedAt: e.options.now().UTC(),
		Count:      len(entries),
		Entries:    entries,
	}, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
