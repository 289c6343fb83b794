// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// DefaultCopyRevertDelay is how long the copy indicator stays on.
const DefaultCopyRevertDelay = 2 * time.Second

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger for host diagnostics.
func WithLogger(l log.Interface) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithCopyRevertDelay overrides the copy indicator duration.
func WithCopyRevertDelay(d time.Duration) Option {
	return func(r *Reconciler) { r.revertDelay = d }
}

// WithAfterFunc replaces time.AfterFunc for the copy indicator.
func WithAfterFunc(f AfterFunc) Option {
	return func(r *Reconciler) { r.afterFunc = f }
}

// Reconciler applies accumulated session text to a Host.
//
// Every method is serialized by one mutex, so updates reach the host in
// call order.
type Reconciler struct {
	mu sync.Mutex

	host        Host
	logger      log.Interface
	revertDelay time.Duration
	afterFunc   AfterFunc

	state  State
	target RenderTarget

	// anchor is the replace-target capture, taken once per session.
	anchor *Selection

	// panel is the only live panel; nil when none exists.
	panel      *Panel
	stopRevert func() bool
}

// New creates a Reconciler for host.
func New(host Host, opts ...Option) *Reconciler {
	r := &Reconciler{
		host:        host,
		logger:      log.Log,
		revertDelay: DefaultCopyRevertDelay,
		afterFunc:   timeAfterFunc,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// =============================================================================
// SESSION UPDATES
// =============================================================================

// OnDelta applies the full accumulated text of the current session.
// It never returns an error; host failures are logged.
func (r *Reconciler) OnDelta(text string, target RenderTarget, isSessionStart bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyLocked(text, target, isSessionStart)
}

// Update is OnDelta for a session that must stay closed once the user
// dismissed its panel. A dismissal wins over any later non-start update of
// the same session; the check and the update happen under one lock. It
// reports whether the text was applied.
func (r *Reconciler) Update(text string, target RenderTarget, isSessionStart bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !isSessionStart && r.state == StateClosed {
		return false
	}
	r.applyLocked(text, target, isSessionStart)
	return true
}

func (r *Reconciler) applyLocked(text string, target RenderTarget, isSessionStart bool) {
	if isSessionStart {
		// A new session closes whatever the previous one left behind.
		r.releaseAnchorLocked()
		if target == TargetReplaceSelection {
			r.removePanelLocked("session_start")
		}
	}
	r.state = StateAccumulating
	r.target = target

	switch target {
	case TargetReplaceSelection:
		r.applyReplacement(text, isSessionStart)
	default:
		r.applyPanel(text, isSessionStart)
	}
}

// End marks the session finished. An open panel stays open.
func (r *Reconciler) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateAccumulating {
		r.state = StateIdle
	}
	r.releaseAnchorLocked()
}

func (r *Reconciler) releaseAnchorLocked() {
	if r.anchor == nil {
		return
	}
	r.host.ReleaseAnchor(r.anchor.Anchor)
	r.anchor = nil
}

// applyReplacement writes text over the range captured at session start.
// The range is always the original capture, re-resolved by the host, never
// one derived from a previous replacement. A session whose start capture
// failed has no range and stays a no-op.
func (r *Reconciler) applyReplacement(text string, isSessionStart bool) {
	if isSessionStart {
		sel, err := r.host.CaptureSelection()
		if err != nil {
			r.logger.WithError(err).Warn("RENDER_NO_SELECTION")
			return
		}
		r.anchor = &sel
	}
	if r.anchor == nil {
		r.logger.Debug("RENDER_NO_ANCHOR")
		return
	}

	err := r.host.ReplaceRange(r.anchor.Anchor, text)
	switch {
	case errors.Is(err, ErrAnchorLost):
		r.logger.WithField("anchor", string(r.anchor.Anchor)).Debug("RENDER_ANCHOR_LOST")
	case err != nil:
		r.logger.WithError(err).Error("RENDER_REPLACE_FAILED")
	}
}

// applyPanel creates the panel on session start (or when none exists) and
// otherwise overwrites its content.
func (r *Reconciler) applyPanel(text string, isSessionStart bool) {
	if isSessionStart || r.panel == nil {
		r.createPanelLocked(text)
		return
	}

	r.panel.Text = text
	r.showLocked("update")
}

// createPanelLocked tears down any existing panel before creating the new
// one, so two panels never coexist.
func (r *Reconciler) createPanelLocked(text string) {
	r.removePanelLocked("replaced")

	sel, err := r.host.CaptureSelection()
	if err != nil {
		r.logger.WithError(err).Warn("RENDER_NO_SELECTION")
		return
	}
	// Only the geometry is kept.
	r.host.ReleaseAnchor(sel.Anchor)

	r.panel = &Panel{
		ID:         uuid.NewString(),
		AnchorRect: sel.Rect,
		Pos:        sel.Rect.BottomLeft(),
		Text:       text,
		Open:       true,
	}
	r.logger.WithFields(log.Fields{
		"panel": r.panel.ID,
		"x":     r.panel.Pos.X,
		"y":     r.panel.Pos.Y,
	}).Debug("PANEL_CREATED")
	r.showLocked("create")
}

func (r *Reconciler) showLocked(op string) {
	if err := r.host.ShowPanel(*r.panel); err != nil {
		r.logger.WithError(err).WithField("op", op).Error("RENDER_PANEL_FAILED")
	}
}

func (r *Reconciler) removePanelLocked(reason string) bool {
	if r.panel == nil {
		return false
	}
	if r.stopRevert != nil {
		r.stopRevert()
		r.stopRevert = nil
	}
	id := r.panel.ID
	r.panel = nil
	if err := r.host.RemovePanel(id); err != nil {
		r.logger.WithError(err).WithField("panel", id).Error("RENDER_PANEL_REMOVE_FAILED")
	}
	r.logger.WithFields(log.Fields{"panel": id, "reason": reason}).Debug("PANEL_REMOVED")
	return true
}

// =============================================================================
// PANEL INTERACTIONS
// =============================================================================

// Dismiss closes the panel (outside click or close button). It does not
// stop an in-flight completion. It reports whether a panel was open.
func (r *Reconciler) Dismiss() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.removePanelLocked("dismissed") {
		return false
	}
	r.state = StateClosed
	return true
}

// Drag moves the panel by a pointer delta. It works in any state.
func (r *Reconciler) Drag(dx, dy int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panel == nil {
		return false
	}
	r.panel.Pos.X += dx
	r.panel.Pos.Y += dy
	if r.panel.Pos.X < 0 {
		r.panel.Pos.X = 0
	}
	if r.panel.Pos.Y < 0 {
		r.panel.Pos.Y = 0
	}
	r.showLocked("drag")
	return true
}

// Copy puts the panel text on the clipboard and shows the copy indicator,
// which reverts after the configured delay.
func (r *Reconciler) Copy() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panel == nil {
		return ErrNoPanel
	}

	if err := r.host.WriteClipboard(r.panel.Text); err != nil {
		r.logger.WithError(err).Error("PANEL_COPY_FAILED")
		return fmt.Errorf("failed to copy panel text: %w", err)
	}

	r.panel.Copied = true
	r.showLocked("copy")

	if r.stopRevert != nil {
		r.stopRevert()
	}
	id := r.panel.ID
	r.stopRevert = r.afterFunc(r.revertDelay, func() { r.revertCopy(id) })
	return nil
}

func (r *Reconciler) revertCopy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panel == nil || r.panel.ID != id || !r.panel.Copied {
		return
	}
	r.panel.Copied = false
	r.stopRevert = nil
	r.showLocked("copy_revert")
}

// =============================================================================
// INTROSPECTION
// =============================================================================

// State returns the lifecycle state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Dismissed reports whether the user closed the panel since the last update.
func (r *Reconciler) Dismissed() bool {
	return r.State() == StateClosed
}

// Target returns the target of the most recent update.
func (r *Reconciler) Target() RenderTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// Panel returns a copy of the live panel.
func (r *Reconciler) Panel() (Panel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panel == nil {
		return Panel{}, false
	}
	return *r.panel, true
}
