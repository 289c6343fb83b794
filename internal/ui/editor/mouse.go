// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package editor

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/boytm/browser-llm-translation-plugin/internal/render"
)

// wheelStep is how many lines one wheel notch scrolls.
const wheelStep = 3

// handleMouse implements click-to-place, drag-to-select and the panel
// interactions: close button, copy button, header drag and outside click.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	pos := render.Point{X: msg.X, Y: msg.Y}

	switch msg.Type {
	case tea.MouseWheelUp:
		m.scroll(-wheelStep)
		return m, nil

	case tea.MouseWheelDown:
		m.scroll(wheelStep)
		return m, nil

	case tea.MouseRelease:
		m.drag = dragNone
		return m, nil

	case tea.MouseMotion:
		m.dragTo(pos)
		return m, nil

	case tea.MouseLeft:
		// Some terminals report a held button as repeated presses.
		if m.drag != dragNone {
			m.dragTo(pos)
			return m, nil
		}
		m.press(pos)
		m.syncStatus()
		return m, nil
	}

	return m, nil
}

func (m *Model) press(pos render.Point) {
	if pos.Y >= m.textHeight() {
		// Status bar.
		return
	}

	layout := m.layoutPanel(m.doc.Snapshot().Panel)
	switch {
	case layout.onClose(pos.X, pos.Y):
		m.rec.Dismiss()
		return
	case layout.onCopy(pos.X, pos.Y):
		if err := m.rec.Copy(); err != nil {
			m.statusBar.SetError(err.Error())
		}
		return
	case layout.onHeader(pos.X, pos.Y):
		m.drag = dragPanel
		m.lastMouse = pos
		return
	case layout.contains(pos.X, pos.Y):
		// Clicks on the body do nothing.
		return
	case layout.ok:
		m.rec.Dismiss()
	}

	m.doc.SetCursor(m.doc.OffsetAt(m.toDocument(pos)))
	m.drag = dragSelect
	m.lastMouse = pos
}

func (m *Model) dragTo(pos render.Point) {
	switch m.drag {
	case dragPanel:
		dx, dy := pos.X-m.lastMouse.X, pos.Y-m.lastMouse.Y
		if dx != 0 || dy != 0 {
			m.rec.Drag(dx, dy)
		}
	case dragSelect:
		m.doc.ExtendSelectionTo(m.doc.OffsetAt(m.toDocument(pos)))
	}
	m.lastMouse = pos
}

// toDocument converts a screen cell to document coordinates.
func (m Model) toDocument(pos render.Point) render.Point {
	return render.Point{X: pos.X, Y: pos.Y + m.scrollY}
}
