// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package editor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/boytm/browser-llm-translation-plugin/internal/document"
	"github.com/boytm/browser-llm-translation-plugin/internal/render"
	"github.com/boytm/browser-llm-translation-plugin/internal/util"
)

// PanelTitle is the heading of the result panel.
const PanelTitle = "翻译结果"

const (
	closeLabel  = "[x]"
	copyLabel   = "[copy]"
	copiedLabel = "✓ copied"

	// panelMinWidth keeps the header readable on tiny terminals.
	panelMinWidth = 24
)

// =============================================================================
// PANEL LAYOUT
// =============================================================================

// panelLayout is where the panel is drawn on screen and where its buttons are.
type panelLayout struct {
	ok    bool
	x, y  int // screen position of the top-left border cell
	w, h  int
	lines []string

	headerY          int
	copyX0, copyX1   int
	closeX0, closeX1 int
}

func (l panelLayout) contains(x, y int) bool {
	return l.ok && x >= l.x && x < l.x+l.w && y >= l.y && y < l.y+l.h
}

func (l panelLayout) onClose(x, y int) bool {
	return l.ok && y == l.headerY && x >= l.closeX0 && x < l.closeX1
}

func (l panelLayout) onCopy(x, y int) bool {
	return l.ok && y == l.headerY && x >= l.copyX0 && x < l.copyX1
}

func (l panelLayout) onHeader(x, y int) bool {
	return l.ok && l.contains(x, y) && y <= l.headerY
}

// layoutPanel computes the panel box for the current screen. The box is
// 20-40% of the screen wide, sits at Pos minus the scroll offset and is
// clamped inside the text area.
func (m Model) layoutPanel(p *render.Panel) panelLayout {
	if p == nil || !p.Open {
		return panelLayout{}
	}

	textH := m.textHeight()
	minW := m.width * 20 / 100
	if minW < panelMinWidth {
		minW = panelMinWidth
	}
	maxW := m.width * 40 / 100
	if maxW < minW {
		maxW = minW
	}

	copyText := copyLabel
	if p.Copied {
		copyText = copiedLabel
	}
	headerMin := runewidth.StringWidth(PanelTitle) + 1 + runewidth.StringWidth(copyText) + 1 + len(closeLabel)

	natural := headerMin
	for _, line := range strings.Split(p.Text, "\n") {
		if w := runewidth.StringWidth(line); w > natural {
			natural = w
		}
	}
	// Border and padding take four cells.
	inner := clamp(natural, minW-4, maxW-4)
	if inner < headerMin {
		inner = headerMin
	}
	w := inner + 4

	body := wrapCells(p.Text, inner)
	maxBody := textH - 3
	if maxBody < 1 {
		maxBody = 1
	}
	if len(body) > maxBody {
		// Keep the tail so streamed text stays visible.
		body = body[len(body)-maxBody:]
	}
	h := len(body) + 3

	x := clamp(p.Pos.X, 0, m.width-w)
	y := clamp(p.Pos.Y-m.scrollY, 0, textH-h)

	l := panelLayout{ok: true, x: x, y: y, w: w, h: h, headerY: y + 1}
	l.closeX1 = x + 2 + inner
	l.closeX0 = l.closeX1 - len(closeLabel)
	l.copyX1 = l.closeX0 - 1
	l.copyX0 = l.copyX1 - runewidth.StringWidth(copyText)

	copyStyle := m.theme.PanelButton
	if p.Copied {
		copyStyle = m.theme.PanelCopied
	}
	gap := inner - headerMin + 1
	header := m.theme.PanelTitle.Render(PanelTitle) +
		strings.Repeat(" ", gap) +
		copyStyle.Render(copyText) + " " +
		m.theme.PanelButton.Render(closeLabel)

	content := make([]string, 0, len(body)+1)
	content = append(content, header)
	for _, line := range body {
		content = append(content, m.theme.PanelBody.Render(util.PadWidth(line, inner)))
	}
	l.lines = strings.Split(m.theme.Panel.Render(strings.Join(content, "\n")), "\n")
	return l
}

// wrapCells hard-wraps text at width display cells. CJK text has no spaces
// to break at, so wrapping is by cell, not by word.
func wrapCells(text string, width int) []string {
	if width < 1 {
		width = 1
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		var b strings.Builder
		col := 0
		for _, r := range line {
			rw := runewidth.RuneWidth(r)
			if col+rw > width && col > 0 {
				out = append(out, b.String())
				b.Reset()
				col = 0
			}
			b.WriteRune(r)
			col += rw
		}
		out = append(out, b.String())
	}
	return out
}

// =============================================================================
// TEXT RENDERING
// =============================================================================

type cellClass int

const (
	classText cellClass = iota
	classSelected
	classLoading
	classCursor
)

// run is a stretch of one display line drawn with a single style.
type run struct {
	start int // first display column
	text  string
	class cellClass
}

func before(a, b render.Point) bool {
	return a.Y < b.Y || (a.Y == b.Y && a.X < b.X)
}

// lineRuns splits display line y into styled runs. A cursor past the end of
// the line becomes a trailing one-cell run.
func lineRuns(snap document.Snapshot, line string, y int) []run {
	var runs []run
	var b strings.Builder
	cur := classText
	start, col := 0, 0

	flush := func() {
		if b.Len() > 0 {
			runs = append(runs, run{start: start, text: b.String(), class: cur})
			b.Reset()
		}
	}

	for _, r := range line {
		p := render.Point{X: col, Y: y}
		class := classText
		switch {
		case p == snap.Cursor:
			class = classCursor
		case snap.HasSel && !before(p, snap.SelStart) && before(p, snap.SelEnd):
			class = classSelected
			if snap.Loading {
				class = classLoading
			}
		}
		if class != cur {
			flush()
			cur = class
			start = col
		}
		b.WriteRune(r)
		col += runewidth.RuneWidth(r)
	}
	flush()

	if snap.Cursor.Y == y && snap.Cursor.X >= col {
		runs = append(runs, run{start: col, text: " ", class: classCursor})
	}
	return runs
}

// renderSpan draws display columns [from, to) of a line, padded with spaces
// so overlays line up.
func (m Model) renderSpan(runs []run, from, to int) string {
	if to <= from {
		return ""
	}
	var b strings.Builder
	filled := from
	for _, r := range runs {
		end := r.start + runewidth.StringWidth(r.text)
		if end <= from || r.start >= to {
			continue
		}
		if r.start > filled {
			b.WriteString(strings.Repeat(" ", r.start-filled))
			filled = r.start
		}
		part := util.CellSlice(r.text, filled-r.start, to-r.start)
		b.WriteString(m.styleFor(r.class).Render(part))
		filled += runewidth.StringWidth(part)
	}
	if filled < to {
		b.WriteString(strings.Repeat(" ", to-filled))
	}
	return b.String()
}

func (m Model) styleFor(c cellClass) lipgloss.Style {
	switch c {
	case classCursor:
		return m.theme.Cursor
	case classSelected:
		return m.theme.Selection
	case classLoading:
		return m.theme.Loading
	default:
		return m.theme.Text
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the document, the panel overlay and the status bar.
func (m Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "loading..."
	}

	snap := m.doc.Snapshot()
	layout := m.layoutPanel(snap.Panel)
	textH := m.textHeight()

	rows := make([]string, 0, m.height)
	for row := 0; row < textH; row++ {
		y := row + m.scrollY
		if y >= len(snap.Lines) {
			rows = append(rows, m.renderFillerRow(row, layout))
			continue
		}
		runs := lineRuns(snap, snap.Lines[y], y)

		if layout.ok && row >= layout.y && row < layout.y+layout.h {
			rows = append(rows,
				m.renderSpan(runs, 0, layout.x)+
					layout.lines[row-layout.y]+
					m.renderSpan(runs, layout.x+layout.w, m.width))
			continue
		}
		rows = append(rows, m.renderSpan(runs, 0, m.width))
	}

	m.statusBar.SetWidth(m.width)
	rows = append(rows, m.statusBar.View())
	return strings.Join(rows, "\n")
}

// renderFillerRow draws a row past the end of the document.
func (m Model) renderFillerRow(row int, layout panelLayout) string {
	filler := []run{{start: 0, text: "~", class: classText}}
	if layout.ok && row >= layout.y && row < layout.y+layout.h {
		return m.theme.Filler.Render(m.renderPlain(filler, 0, layout.x)) +
			layout.lines[row-layout.y] +
			m.renderPlain(filler, layout.x+layout.w, m.width)
	}
	return m.theme.Filler.Render(m.renderPlain(filler, 0, m.width))
}

func (m Model) renderPlain(runs []run, from, to int) string {
	if to <= from {
		return ""
	}
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(util.CellSlice(r.text, from-r.start, to-r.start))
	}
	return util.PadWidth(b.String(), to-from)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
