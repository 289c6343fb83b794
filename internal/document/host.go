// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package document

import (
	"fmt"

	"github.com/boytm/browser-llm-translation-plugin/internal/render"
)

// Document is the render.Host of the terminal editor.
var _ render.Host = (*Document)(nil)

// CaptureSelection snapshots the selection and records an anchor for it.
func (d *Document) CaptureSelection() (render.Selection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start, end, ok := d.selectionLocked()
	if !ok {
		return render.Selection{}, ErrNoSelection
	}

	d.nextAnchor++
	id := render.Anchor(fmt.Sprintf("sel-%d", d.nextAnchor))
	d.anchors[id] = &span{start: start, end: end}

	return render.Selection{
		Anchor: id,
		Text:   string(d.text[start:end]),
		Rect:   d.selectionRectLocked(start, end),
	}, nil
}

// ReplaceRange replaces the anchored range with text. The anchor keeps its
// original start and now ends after text, so the next replacement covers
// exactly what this one wrote.
func (d *Document) ReplaceRange(anchor render.Anchor, text string) error {
	return d.mutate(func() error {
		a, ok := d.anchors[anchor]
		if !ok || a.start < 0 || a.end > len(d.text) || a.start > a.end {
			return render.ErrAnchorLost
		}

		repl := []rune(text)
		start, end := a.start, a.end
		delta := len(repl) - (end - start)

		d.spliceLocked(start, end, repl)
		for id, other := range d.anchors {
			if id == anchor {
				continue
			}
			switch {
			case end <= other.start:
				other.start += delta
				other.end += delta
			case start >= other.end:
			default:
				delete(d.anchors, id)
			}
		}
		a.end = start + len(repl)

		d.cursor = shift(d.cursor, start, end, delta)
		if d.selAnchor >= 0 {
			if d.selAnchor > start && d.selAnchor < end {
				d.selAnchor = -1
			} else {
				d.selAnchor = shift(d.selAnchor, start, end, delta)
			}
		}
		return nil
	})
}

// shift maps an offset across a replacement of [start, end). Offsets inside
// the replaced range move to its new end.
func shift(offset, start, end, delta int) int {
	switch {
	case offset >= end:
		return offset + delta
	case offset > start:
		return end + delta
	default:
		return offset
	}
}

// ReleaseAnchor forgets anchor. Unknown anchors are ignored.
func (d *Document) ReleaseAnchor(anchor render.Anchor) {
	d.mu.Lock()
	delete(d.anchors, anchor)
	d.mu.Unlock()
}

// ShowPanel stores p in the document's single panel slot.
func (d *Document) ShowPanel(p render.Panel) error {
	return d.mutate(func() error {
		d.panel = &p
		return nil
	})
}

// RemovePanel empties the panel slot if it holds the panel with id.
func (d *Document) RemovePanel(id string) error {
	return d.mutate(func() error {
		if d.panel != nil && d.panel.ID == id {
			d.panel = nil
		}
		return nil
	})
}

// Panel returns the panel currently shown.
func (d *Document) Panel() (render.Panel, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panel == nil {
		return render.Panel{}, false
	}
	return *d.panel, true
}

// WriteClipboard writes text with the configured clipboard writer.
func (d *Document) WriteClipboard(text string) error {
	d.mu.Lock()
	write := d.clipboard
	d.mu.Unlock()
	if err := write(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a consistent view of the document for rendering.
type Snapshot struct {
	Lines    []string
	Cursor   render.Point
	SelStart render.Point
	SelEnd   render.Point
	HasSel   bool
	Panel    *render.Panel
	Loading  bool
	Dirty    bool
}

// Snapshot captures everything a view needs under one lock.
func (d *Document) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Snapshot{
		Lines:   d.displayLinesLocked(),
		Cursor:  d.pointAtLocked(d.cursor),
		Loading: d.loading,
		Dirty:   d.dirty,
	}
	if start, end, ok := d.selectionLocked(); ok {
		s.HasSel = true
		s.SelStart = d.pointAtLocked(start)
		s.SelEnd = d.pointAtLocked(end)
	}
	if d.panel != nil {
		p := *d.panel
		s.Panel = &p
	}
	return s
}
