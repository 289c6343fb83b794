// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package document

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/boytm/browser-llm-translation-plugin/internal/render"
)

// UNICODE: columns are display cells, so CJK text lines up with the panel
// overlay drawn over it.

func (d *Document) cellWidth(r rune) int {
	if r == '\t' {
		return d.tabWidth
	}
	return runewidth.RuneWidth(r)
}

// PointAt converts a rune offset to a (column, line) position.
func (d *Document) PointAt(offset int) render.Point {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pointAtLocked(offset)
}

func (d *Document) pointAtLocked(offset int) render.Point {
	offset = d.clampLocked(offset)
	var p render.Point
	for _, r := range d.text[:offset] {
		if r == '\n' {
			p.Y++
			p.X = 0
			continue
		}
		p.X += d.cellWidth(r)
	}
	return p
}

// OffsetAt converts a (column, line) position to the nearest rune offset.
// Positions past the end of a line clamp to the line end, and a column inside
// a wide rune resolves to that rune.
func (d *Document) OffsetAt(p render.Point) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offsetAtLocked(p)
}

func (d *Document) offsetAtLocked(p render.Point) int {
	if p.Y < 0 {
		return 0
	}
	line, offset := 0, 0
	for offset < len(d.text) && line < p.Y {
		if d.text[offset] == '\n' {
			line++
		}
		offset++
	}
	if line < p.Y {
		return len(d.text)
	}

	col := 0
	for offset < len(d.text) && d.text[offset] != '\n' {
		w := d.cellWidth(d.text[offset])
		if col+w > p.X {
			break
		}
		col += w
		offset++
	}
	return offset
}

// selectionRectLocked returns the bounding box of runes [start, end) in
// document cells. Multi-line selections start at column zero and are as wide
// as their widest covered line.
func (d *Document) selectionRectLocked(start, end int) render.Rect {
	sp := d.pointAtLocked(start)
	ep := d.pointAtLocked(end)
	if sp.Y == ep.Y {
		return render.Rect{X: sp.X, Y: sp.Y, W: ep.X - sp.X, H: 1}
	}

	width, col := 0, sp.X
	for _, r := range d.text[start:end] {
		if r == '\n' {
			if col > width {
				width = col
			}
			col = 0
			continue
		}
		col += d.cellWidth(r)
	}
	if col > width {
		width = col
	}
	return render.Rect{X: 0, Y: sp.Y, W: width, H: ep.Y - sp.Y + 1}
}

// DisplayLines returns the buffer's lines with tabs expanded to spaces, so
// every rune's column matches PointAt.
func (d *Document) DisplayLines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.displayLinesLocked()
}

func (d *Document) displayLinesLocked() []string {
	tab := strings.Repeat(" ", d.tabWidth)
	lines := strings.Split(string(d.text), "\n")
	for i, l := range lines {
		lines[i] = strings.ReplaceAll(l, "\t", tab)
	}
	return lines
}
