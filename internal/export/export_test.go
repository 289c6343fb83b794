// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boytm/browser-llm-translation-plugin/internal/storage"
)

var pinned = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func testOptions() *Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return pinned }
	return opts
}

func testEntries() []storage.Entry {
	return []storage.Entry{
		{
			ID:         "a1b2c3d4-0000-0000-0000-000000000001",
			Mode:       "translate",
			Target:     "panel",
			Model:      "gpt-4o-mini",
			Source:     "Good morning\n<b>world</b>",
			Result:     "早上好\n世界",
			CreatedAt:  pinned.Add(-time.Hour),
			DurationMs: 1300,
		},
		{
			ID:        "a1b2c3d4-0000-0000-0000-000000000002",
			Mode:      "editing_assistant",
			Target:    "replace",
			Source:    "teh fox",
			Error:     "http 401 Unauthorized",
			CreatedAt: pinned.Add(-time.Minute),
		},
	}
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path string
		ext  string
	}{
		{"out.md", ".md"},
		{"out.MARKDOWN", ".md"},
		{"out.html", ".html"},
		{"out.htm", ".html"},
		{"out.json", ".json"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			e, err := ForPath(tt.path, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.ext, e.FileExtension())
		})
	}

	_, err := ForPath("out.pdf", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestMarkdownExporter(t *testing.T) {
	out, err := NewMarkdownExporter(testOptions()).Export(testEntries())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: Translation history\nentries: 2\n"))
	assert.Contains(t, md, "exported: 2025-03-01T09:30:00Z")
	assert.Contains(t, md, "# Translation history")
	assert.Contains(t, md, "> Good morning\n> <b>world</b>\n")
	assert.Contains(t, md, "> 早上好\n> 世界\n")
	assert.Contains(t, md, "- **Model**: gpt-4o-mini")
	assert.Contains(t, md, "- **Duration**: 1.3s")
	assert.Contains(t, md, "### Error\n\n> http 401 Unauthorized")
}

func TestMarkdownExporter_NoMetadata(t *testing.T) {
	opts := testOptions()
	opts.IncludeMetadata = false
	out, err := NewMarkdownExporter(opts).Export(nil)
	require.NoError(t, err)
	assert.Equal(t, "# Translation history\n\n*No history.*\n", string(out))
}

func TestHTMLExporter_Escapes(t *testing.T) {
	opts := testOptions()
	opts.Theme = "dark"
	out, err := NewHTMLExporter(opts).Export(testEntries())
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, `<body class="dark-theme">`)
	assert.Contains(t, page, "&lt;b&gt;world&lt;/b&gt;")
	assert.NotContains(t, page, "<b>world</b>")
	assert.Contains(t, page, "早上好<br>\n世界")
	assert.Contains(t, page, `class="entry failed"`)
	assert.Contains(t, page, "2 entries")
}

func TestHTMLExporter_UnknownThemeIsLight(t *testing.T) {
	opts := testOptions()
	opts.Theme = "auto"
	out, err := NewHTMLExporter(opts).Export(nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), `<body class="light-theme">`)
	assert.Contains(t, string(out), "No history.")
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter(testOptions()).Export(testEntries())
	require.NoError(t, err)

	var doc struct {
		Count      int             `json:"count"`
		ExportedAt time.Time       `json:"exported_at"`
		Entries    []storage.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, 2, doc.Count)
	assert.True(t, pinned.Equal(doc.ExportedAt))
	assert.Equal(t, "早上好\n世界", doc.Entries[0].Result)

	out, err = NewJSONExporter(nil).Export(nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"entries": []`)
}

func TestToFile(t *testing.T) {
	dir := t.TempDir()
	path, err := ToFile(testEntries(), filepath.Join(dir, "history.md"), testOptions())
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Translation history")

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	_, err = ToFile(testEntries(), filepath.Join(dir, "history.txt"), nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
