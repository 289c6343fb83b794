// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "errors"

// ErrAnchorLost is returned by a Host when a captured range no longer resolves.
var ErrAnchorLost = errors.New("selection anchor no longer resolves")

// ErrNoPanel is returned by panel interactions when no panel is open.
var ErrNoPanel = errors.New("no panel is open")

// RenderTarget is where a session's text goes.
type RenderTarget int

const (
	// TargetFloatingPanel shows the text in a panel below the selection.
	TargetFloatingPanel RenderTarget = iota

	// TargetReplaceSelection writes the text over the original selection.
	TargetReplaceSelection
)

// String returns a short name for logs and status bars.
func (t RenderTarget) String() string {
	if t == TargetReplaceSelection {
		return "replace"
	}
	return "panel"
}

// TargetFromSettings maps the replace_text setting to a target.
func TargetFromSettings(replaceText bool) RenderTarget {
	if replaceText {
		return TargetReplaceSelection
	}
	return TargetFloatingPanel
}

// State is the reconciler's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "accumulating"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Point is a position in document coordinates (column, line). Document
// coordinates do not move when the view scrolls.
type Point struct {
	X, Y int
}

// Rect is a bounding box in document coordinates.
type Rect struct {
	X, Y, W, H int
}

// BottomLeft is the point just below the rect's left edge.
func (r Rect) BottomLeft() Point {
	return Point{X: r.X, Y: r.Y + r.H}
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Anchor is an opaque handle to a captured range, issued by a Host.
type Anchor string

// Selection is a snapshot of the user's selection.
type Selection struct {
	Anchor Anchor
	Text   string
	Rect   Rect
}

// Panel is the state of the floating result panel.
type Panel struct {
	ID         string
	AnchorRect Rect  // selection geometry when the panel was created
	Pos        Point // top-left corner; starts at AnchorRect.BottomLeft()
	Text       string
	Open       bool
	Copied     bool // the copy indicator is showing
}

// Host is the document-side mutation boundary.
type Host interface {
	// CaptureSelection snapshots the current selection and issues an anchor
	// for its range.
	CaptureSelection() (Selection, error)

	// ReplaceRange replaces the content of the anchored range. It returns
	// ErrAnchorLost when the range no longer resolves.
	ReplaceRange(anchor Anchor, text string) error

	// ReleaseAnchor forgets an anchor issued by CaptureSelection.
	ReleaseAnchor(anchor Anchor)

	// ShowPanel creates or re-renders the document's single panel.
	ShowPanel(p Panel) error

	// RemovePanel removes the panel with the given id, if present.
	RemovePanel(id string) error

	// WriteClipboard puts text on the system clipboard.
	WriteClipboard(text string) error
}
