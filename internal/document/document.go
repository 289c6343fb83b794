// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package document

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/atotto/clipboard"

	"github.com/boytm/browser-llm-translation-plugin/internal/render"
)

// ErrNoSelection is returned when an operation needs a non-empty selection.
var ErrNoSelection = errors.New("no text selected")

// DefaultTabWidth is the display width of a tab.
const DefaultTabWidth = 4

type span struct {
	start, end int
}

// Document is a mutex-guarded rune buffer with a cursor, an optional
// selection, captured anchors and a single floating-panel slot.
type Document struct {
	mu sync.Mutex

	text      []rune
	cursor    int
	selAnchor int // -1 when nothing is selected
	dirty     bool

	anchors    map[render.Anchor]*span
	nextAnchor int

	panel   *render.Panel
	loading bool

	tabWidth  int
	clipboard func(string) error
	onChange  func()
}

// Option configures a Document.
type Option func(*Document)

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(d *Document) { d.clipboard = write }
}

// WithTabWidth sets the display width of a tab.
func WithTabWidth(n int) Option {
	return func(d *Document) {
		if n > 0 {
			d.tabWidth = n
		}
	}
}

// New creates a document holding text with the cursor at the start.
func New(text string, opts ...Option) *Document {
	d := &Document{
		text:      []rune(text),
		selAnchor: -1,
		anchors:   make(map[render.Anchor]*span),
		tabWidth:  DefaultTabWidth,
		clipboard: clipboard.WriteAll,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnChange registers fn to run after every mutation, outside the lock.
// fn must not block.
func (d *Document) OnChange(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// mutate runs fn under the lock and then fires the change hook.
func (d *Document) mutate(fn func() error) error {
	d.mu.Lock()
	err := fn()
	hook := d.onChange
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

// =============================================================================
// TEXT ACCESS
// =============================================================================

// Text returns the whole buffer.
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.text)
}

// Lines returns the buffer split on newlines.
func (d *Document) Lines() []string {
	return strings.Split(d.Text(), "\n")
}

// Dirty reports whether the user edited the buffer since the last MarkClean.
// Replacements made by a translation count as edits.
func (d *Document) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// MarkClean clears the dirty flag after a save.
func (d *Document) MarkClean() {
	d.mu.Lock()
	d.dirty = false
	d.mu.Unlock()
}

// Cursor returns the cursor's rune offset.
func (d *Document) Cursor() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// Selection returns the selected rune range.
func (d *Document) Selection() (start, end int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectionLocked()
}

func (d *Document) selectionLocked() (int, int, bool) {
	if d.selAnchor < 0 || d.selAnchor == d.cursor {
		return 0, 0, false
	}
	if d.selAnchor < d.cursor {
		return d.selAnchor, d.cursor, true
	}
	return d.cursor, d.selAnchor, true
}

// SelectedText returns the selected text or ErrNoSelection.
func (d *Document) SelectedText() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	start, end, ok := d.selectionLocked()
	if !ok {
		return "", ErrNoSelection
	}
	return string(d.text[start:end]), nil
}

// =============================================================================
// EDITING
// =============================================================================

// Insert types s at the cursor, replacing the selection if there is one.
func (d *Document) Insert(s string) {
	d.mutate(func() error {
		start, end, ok := d.selectionLocked()
		if !ok {
			start, end = d.cursor, d.cursor
		}
		d.editLocked(start, end, []rune(s))
		d.cursor = start + len([]rune(s))
		d.selAnchor = -1
		return nil
	})
}

// Backspace deletes the selection or the rune before the cursor.
func (d *Document) Backspace() {
	d.mutate(func() error {
		start, end, ok := d.selectionLocked()
		if !ok {
			if d.cursor == 0 {
				return nil
			}
			start, end = d.cursor-1, d.cursor
		}
		d.editLocked(start, end, nil)
		d.cursor = start
		d.selAnchor = -1
		return nil
	})
}

// Delete deletes the selection or the rune under the cursor.
func (d *Document) Delete() {
	d.mutate(func() error {
		start, end, ok := d.selectionLocked()
		if !ok {
			if d.cursor >= len(d.text) {
				return nil
			}
			start, end = d.cursor, d.cursor+1
		}
		d.editLocked(start, end, nil)
		d.cursor = start
		d.selAnchor = -1
		return nil
	})
}

// editLocked replaces text[start:end] with repl and fixes up anchors.
// An anchor entirely after the edit shifts; one that overlaps it is dropped.
func (d *Document) editLocked(start, end int, repl []rune) {
	d.spliceLocked(start, end, repl)
	delta := len(repl) - (end - start)
	for id, a := range d.anchors {
		switch {
		case end <= a.start:
			a.start += delta
			a.end += delta
		case start >= a.end:
		default:
			delete(d.anchors, id)
		}
	}
}

func (d *Document) spliceLocked(start, end int, repl []rune) {
	out := make([]rune, 0, len(d.text)-(end-start)+len(repl))
	out = append(out, d.text[:start]...)
	out = append(out, repl...)
	out = append(out, d.text[end:]...)
	d.text = out
	d.dirty = true
}

// SetCursor moves the cursor to offset and clears the selection.
func (d *Document) SetCursor(offset int) {
	d.mutate(func() error {
		d.cursor = d.clampLocked(offset)
		d.selAnchor = -1
		return nil
	})
}

// Select selects runes [start, end); the cursor ends at end.
func (d *Document) Select(start, end int) {
	d.mutate(func() error {
		d.selAnchor = d.clampLocked(start)
		d.cursor = d.clampLocked(end)
		return nil
	})
}

// SelectAll selects the whole buffer.
func (d *Document) SelectAll() {
	d.mutate(func() error {
		d.selAnchor = 0
		d.cursor = len(d.text)
		return nil
	})
}

// ClearSelection drops the selection, keeping the cursor.
func (d *Document) ClearSelection() {
	d.mutate(func() error {
		d.selAnchor = -1
		return nil
	})
}

// ExtendSelectionTo moves the cursor to offset, starting a selection at the
// old cursor if none exists. Mouse drags use it.
func (d *Document) ExtendSelectionTo(offset int) {
	d.mutate(func() error {
		if d.selAnchor < 0 {
			d.selAnchor = d.cursor
		}
		d.cursor = d.clampLocked(offset)
		return nil
	})
}

// MoveCursor moves by dx runes and dy lines. Vertical moves keep the display
// column. With extend set, the selection grows from the old cursor.
func (d *Document) MoveCursor(dx, dy int, extend bool) {
	d.mutate(func() error {
		if extend && d.selAnchor < 0 {
			d.selAnchor = d.cursor
		} else if !extend {
			d.selAnchor = -1
		}

		pos := d.cursor + dx
		if dy != 0 {
			p := d.pointAtLocked(pos)
			p.Y += dy
			pos = d.offsetAtLocked(p)
		}
		d.cursor = d.clampLocked(pos)
		return nil
	})
}

// Home moves the cursor to the start of its line.
func (d *Document) Home(extend bool) {
	p := d.PointAt(d.Cursor())
	d.moveToPoint(render.Point{X: 0, Y: p.Y}, extend)
}

// End moves the cursor to the end of its line.
func (d *Document) End(extend bool) {
	p := d.PointAt(d.Cursor())
	d.moveToPoint(render.Point{X: 1 << 30, Y: p.Y}, extend)
}

func (d *Document) moveToPoint(p render.Point, extend bool) {
	d.mutate(func() error {
		if extend && d.selAnchor < 0 {
			d.selAnchor = d.cursor
		} else if !extend {
			d.selAnchor = -1
		}
		d.cursor = d.offsetAtLocked(p)
		return nil
	})
}

func (d *Document) clampLocked(offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > len(d.text) {
		return len(d.text)
	}
	return offset
}

// =============================================================================
// LOADING INDICATOR
// =============================================================================

// ShowLoading turns on the loading highlight.
func (d *Document) ShowLoading() error {
	return d.mutate(func() error {
		d.loading = true
		return nil
	})
}

// HideLoading turns off the loading highlight.
func (d *Document) HideLoading() error {
	return d.mutate(func() error {
		d.loading = false
		return nil
	})
}

// Loading reports whether a translation is in flight.
func (d *Document) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading
}

// String implements fmt.Stringer for debugging.
func (d *Document) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fmt.Sprintf("Document{runes=%d cursor=%d anchors=%d panel=%t}", len(d.text), d.cursor, len(d.anchors), d.panel != nil)
}
