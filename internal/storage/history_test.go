// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// HISTORY STORE TESTS
// =============================================================================

func newMemoryStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := OpenMemory(opts...)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if store.Path() != path {
		t.Errorf("Path() = %q, want %q", store.Path(), path)
	}

	ctx := context.Background()
	if err := store.Record(ctx, Entry{Source: "hello", Result: "你好"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen and make sure the row survived.
	store, err = Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer store.Close()

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestStore_RecordAndGet(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	created := time.Date(2025, 3, 1, 12, 0, 0, 123, time.UTC)
	in := Entry{
		ID:         "entry-1",
		SessionID:  "session-1",
		Mode:       "translate",
		Target:     "panel",
		Model:      "gpt-4o-mini",
		Source:     "你好",
		Result:     "Hello",
		Streamed:   true,
		CreatedAt:  created,
		DurationMs: 420,
	}
	if err := store.Record(ctx, in); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.Get(ctx, "entry-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	got.CreatedAt = in.CreatedAt
	if *got != in {
		t.Errorf("Get() = %+v, want %+v", *got, in)
	}
}

func TestStore_RecordAssignsIDAndTime(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	before := time.Now()
	if err := store.Record(ctx, Entry{Source: "a"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List() returned %d entries, want 1", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("Expected an assigned ID")
	}
	if entries[0].CreatedAt.Before(before.Add(-time.Second)) {
		t.Errorf("CreatedAt = %v, expected around %v", entries[0].CreatedAt, before)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store := newMemoryStore(t)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		e := Entry{ID: fmt.Sprintf("e%d", i), Source: fmt.Sprintf("text %d", i), CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := store.List(ctx, 3)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	if strings.Join(ids, ",") != "e4,e3,e2" {
		t.Errorf("List(3) ids = %v, want [e4 e3 e2]", ids)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("List(0) returned %d entries, want 5", len(all))
	}
}

func TestStore_Search(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	entries := []Entry{
		{ID: "1", Source: "Hello world", Result: "你好世界"},
		{ID: "2", Source: "Goodbye", Result: "再见"},
		{ID: "3", Source: "100% sure", Result: "百分之百确定"},
		{ID: "4", Source: "snake_case", Result: "蛇形命名"},
	}
	for i, e := range entries {
		e.CreatedAt = time.Unix(int64(i), 0)
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"hello", []string{"1"}},
		{"世界", []string{"1"}},
		{"再见", []string{"2"}},
		{"%", []string{"3"}},
		{"_", []string{"4"}},
		{"o", []string{"2", "1"}},
		{"missing", nil},
		{"", []string{"4", "3", "2", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := store.Search(ctx, tt.query, 0)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			var ids []string
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Search(%q) = %v, want %v", tt.query, ids, tt.want)
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, Entry{ID: "gone", Source: "x"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestStore_Clear(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Record(ctx, Entry{Source: "x"}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	n, _ := store.Count(ctx)
	if n != 0 {
		t.Errorf("Count after Clear = %d, want 0", n)
	}
}

func TestStore_MaxEntriesPrunesOldest(t *testing.T) {
	store := newMemoryStore(t, WithMaxEntries(3))
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 6; i++ {
		e := Entry{ID: fmt.Sprintf("e%d", i), Source: "x", CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	n, _ := store.Count(ctx)
	if n != 3 {
		t.Fatalf("Count = %d, want 3", n)
	}
	if _, err := store.Get(ctx, "e2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("oldest entries should be pruned, Get(e2) error = %v", err)
	}
	if _, err := store.Get(ctx, "e5"); err != nil {
		t.Errorf("newest entry missing: %v", err)
	}
}

func TestStore_FailedEntry(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, Entry{ID: "f", Source: "x", Error: "HTTP 401: bad key"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	got, err := store.Get(ctx, "f")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Failed() {
		t.Error("Failed() = false, want true")
	}
}

func TestStore_ConcurrentRecord(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Record(ctx, Entry{Source: fmt.Sprintf("text %d", i)}); err != nil {
				t.Errorf("Record failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 20 {
		t.Errorf("Count = %d, want 20", n)
	}
}

func TestStore_CanceledContext(t *testing.T) {
	store := newMemoryStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Record(ctx, Entry{Source: "x"}); err == nil {
		t.Error("Record with canceled context should fail")
	}
}

// =============================================================================
// FORMATTING TESTS
// =============================================================================

func TestFormatList(t *testing.T) {
	if got := FormatList(nil); got != "No history found." {
		t.Errorf("FormatList(nil) = %q", got)
	}

	out := FormatList([]Entry{
		{ID: "0123456789abcdef", Mode: "translate", Source: "你好\n世界", CreatedAt: time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)},
		{ID: "short", Mode: "editing_assistant", Source: "text", Error: "boom"},
	})
	if !strings.Contains(out, "01234567 ") {
		t.Errorf("expected truncated ID in output:\n%s", out)
	}
	if strings.Contains(out, "0123456789") {
		t.Errorf("ID should be shortened:\n%s", out)
	}
	if !strings.Contains(out, "2025-01-02 03:04") {
		t.Errorf("expected timestamp in output:\n%s", out)
	}
	if !strings.Contains(out, "你好 世界") {
		t.Errorf("expected flattened preview in output:\n%s", out)
	}
	if !strings.Contains(out, "(failed)") {
		t.Errorf("expected failed marker in output:\n%s", out)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"a  b\n\tc", 10, "a b c"},
		{"hello world", 8, "hello..."},
		{"你好世界你好", 7, "你好..."},
	}
	for _, tt := range tests {
		if got := Preview(tt.in, tt.width); got != tt.want {
			t.Errorf("Preview(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestEntry_Markdown(t *testing.T) {
	e := Entry{ID: "abcdef123456", Mode: "translate", Target: "panel", Source: "你好", Result: "Hello", Model: "m"}
	md := e.Markdown()
	for _, want := range []string{"# Translation abcdef12", "## Source", "你好", "## Result", "Hello", "Model: m"} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown() missing %q:\n%s", want, md)
		}
	}

	e.Error = "HTTP 500"
	md = e.Markdown()
	if !strings.Contains(md, "## Error") || strings.Contains(md, "## Result") {
		t.Errorf("failed entry should show error instead of result:\n%s", md)
	}
}

func TestHistoryError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ErrNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is should see through wrapping")
	}
	if errors.Is(&HistoryError{Message: "other"}, ErrNotFound) {
		t.Error("different messages should not match")
	}
}
