// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	require.NoError(t, AtomicWriteFile(path, []byte("endpoint = \"x\"\n"), 0600))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "endpoint = \"x\"\n", string(content))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "doc.txt")
	require.NoError(t, AtomicWriteFile(path, []byte("data"), 0644))
	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestAtomicWriteFile_OverwritesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0644))
	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not survive a successful write")
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"你好世界你好世界", 5, "你好..."},
		{"abc", 2, "ab"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateRunes(tt.in, tt.max))
		})
	}
}

func TestTruncateWidth(t *testing.T) {
	assert.Equal(t, "hello", TruncateWidth("hello", 5))
	assert.Equal(t, "he...", TruncateWidth("hello world", 5))
	// Each ideograph is two cells wide.
	assert.Equal(t, "你...", TruncateWidth("你好世界", 6))
	assert.Equal(t, "", TruncateWidth("abc", 0))
}

func TestStringWidthAndPad(t *testing.T) {
	assert.Equal(t, 4, StringWidth("你好"))
	assert.Equal(t, "你好  ", PadWidth("你好", 6))
	assert.Equal(t, "abcdef", PadWidth("abcdef", 3))
}

func TestCellSlice(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		from, to int
		want     string
	}{
		{"ascii middle", "abcdef", 1, 4, "bcd"},
		{"until end", "abcdef", 3, -1, "def"},
		{"past end", "abc", 5, 8, ""},
		{"wide rune aligned", "你好ab", 2, 5, "好a"},
		{"wide rune straddles left", "你好ab", 1, 4, " 好"},
		{"wide rune straddles right", "a你好", 0, 2, "a "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CellSlice(tt.in, tt.from, tt.to))
		})
	}
}

func TestSafeSubstring(t *testing.T) {
	assert.Equal(t, "好世", SafeSubstring("你好世界", 1, 3))
	assert.Equal(t, "世界", SafeSubstring("你好世界", 2, -1))
	assert.Equal(t, "", SafeSubstring("你好", 5, 6))
	assert.Equal(t, "", SafeSubstring("你好", 1, 1))
}
