// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost records every mutation. Its "document" is a single string with a
// selected range that anchors point into.
type fakeHost struct {
	mu sync.Mutex

	doc       string
	selStart  int
	selEnd    int
	rect      Rect
	anchors   map[Anchor][2]int
	lost      map[Anchor]bool
	nextID    int
	captures  int
	panels    map[string]Panel
	shows     []Panel
	removed   []string
	clipboard string

	captureErr error
	showErr    error
	clipErr    error
}

func newFakeHost(doc string, start, end int) *fakeHost {
	return &fakeHost{
		doc:      doc,
		selStart: start,
		selEnd:   end,
		rect:     Rect{X: 4, Y: 2, W: end - start, H: 1},
		anchors:  map[Anchor][2]int{},
		lost:     map[Anchor]bool{},
		panels:   map[string]Panel{},
	}
}

func (h *fakeHost) CaptureSelection() (Selection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.captureErr != nil {
		return Selection{}, h.captureErr
	}
	h.captures++
	h.nextID++
	a := Anchor(fmt.Sprintf("a%d", h.nextID))
	h.anchors[a] = [2]int{h.selStart, h.selEnd}
	return Selection{Anchor: a, Text: h.doc[h.selStart:h.selEnd], Rect: h.rect}, nil
}

func (h *fakeHost) ReplaceRange(a Anchor, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rng, ok := h.anchors[a]
	if !ok || h.lost[a] {
		return ErrAnchorLost
	}
	h.doc = h.doc[:rng[0]] + text + h.doc[rng[1]:]
	h.anchors[a] = [2]int{rng[0], rng[0] + len(text)}
	return nil
}

func (h *fakeHost) ReleaseAnchor(a Anchor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.anchors, a)
}

func (h *fakeHost) liveAnchors() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.anchors)
}

func (h *fakeHost) ShowPanel(p Panel) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shows = append(h.shows, p)
	if h.showErr != nil {
		return h.showErr
	}
	h.panels[p.ID] = p
	return nil
}

func (h *fakeHost) RemovePanel(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, id)
	delete(h.panels, id)
	return nil
}

func (h *fakeHost) WriteClipboard(text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clipErr != nil {
		return h.clipErr
	}
	h.clipboard = text
	return nil
}

func (h *fakeHost) livePanels() []Panel {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Panel
	for _, p := range h.panels {
		out = append(out, p)
	}
	return out
}

// manualTimer captures the scheduled copy revert so tests can fire it.
type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (m *manualTimer) afterFunc(d time.Duration, f func()) func() bool {
	m.delay, m.fn, m.stopped = d, f, false
	return func() bool { m.stopped = true; return true }
}

func testLogger() (*log.Logger, *memory.Handler) {
	h := memory.New()
	return &log.Logger{Handler: h, Level: log.DebugLevel}, h
}

// =============================================================================
// REPLACE SELECTION
// =============================================================================

func TestReplaceSelection_FullTextSupersedes(t *testing.T) {
	host := newFakeHost("say hello now", 4, 9)
	r := New(host)

	r.OnDelta("A", TargetReplaceSelection, true)
	assert.Equal(t, "say A now", host.doc)

	r.OnDelta("AB", TargetReplaceSelection, false)
	assert.Equal(t, "say AB now", host.doc, "second call replaces, never appends")

	r.OnDelta("AB, then more", TargetReplaceSelection, false)
	assert.Equal(t, "say AB, then more now", host.doc)

	assert.Equal(t, 1, host.captures, "the range is captured once per session")
	assert.Equal(t, StateAccumulating, r.State())
	r.End()
	assert.Equal(t, StateIdle, r.State())
}

func TestReplaceSelection_BufferedSingleCall(t *testing.T) {
	host := newFakeHost("hello", 0, 5)
	r := New(host)

	r.OnDelta("你好", TargetReplaceSelection, true)
	r.End()
	assert.Equal(t, "你好", host.doc)
}

func TestReplaceSelection_LostAnchorIsNoOp(t *testing.T) {
	logger, logs := testLogger()
	host := newFakeHost("say hello now", 4, 9)
	r := New(host, WithLogger(logger))

	r.OnDelta("A", TargetReplaceSelection, true)
	for a := range host.anchors {
		host.lost[a] = true
	}

	assert.NotPanics(t, func() {
		r.OnDelta("AB", TargetReplaceSelection, false)
	})
	assert.Equal(t, "say A now", host.doc)
	require.NotEmpty(t, logs.Entries)
	assert.Equal(t, "RENDER_ANCHOR_LOST", logs.Entries[len(logs.Entries)-1].Message)
}

func TestReplaceSelection_NewSessionRecaptures(t *testing.T) {
	host := newFakeHost("one two", 0, 3)
	r := New(host)

	r.OnDelta("1", TargetReplaceSelection, true)
	r.End()

	host.selStart, host.selEnd = 2, 5 // "1 two" -> select "two"
	r.OnDelta("2", TargetReplaceSelection, true)
	assert.Equal(t, "1 2", host.doc)
	assert.Equal(t, 2, host.captures)
}

func TestReplaceSelection_ClosesExistingPanel(t *testing.T) {
	host := newFakeHost("abc", 0, 3)
	r := New(host)

	r.OnDelta("panel", TargetFloatingPanel, true)
	require.Len(t, host.livePanels(), 1)

	r.OnDelta("x", TargetReplaceSelection, true)
	assert.Empty(t, host.livePanels())
	_, ok := r.Panel()
	assert.False(t, ok)
}

func TestReplaceSelection_FailedStartCaptureStaysNoOp(t *testing.T) {
	host := newFakeHost("say hello now", 4, 9)
	host.captureErr = errors.New("nothing selected")
	r := New(host)

	r.OnDelta("A", TargetReplaceSelection, true)

	// Something else gets selected while the session is still running.
	host.captureErr = nil
	host.selStart, host.selEnd = 0, 3
	r.OnDelta("AB", TargetReplaceSelection, false)

	assert.Equal(t, "say hello now", host.doc)
	assert.Equal(t, 0, host.captures)
}

func TestAnchorsReleased(t *testing.T) {
	t.Run("replace session releases at end", func(t *testing.T) {
		host := newFakeHost("say hello now", 4, 9)
		r := New(host)

		r.OnDelta("A", TargetReplaceSelection, true)
		r.OnDelta("AB", TargetReplaceSelection, false)
		assert.Equal(t, 1, host.liveAnchors())
		r.End()
		assert.Equal(t, 0, host.liveAnchors())
	})

	t.Run("superseded replace session releases on next start", func(t *testing.T) {
		host := newFakeHost("one two", 0, 3)
		r := New(host)

		r.OnDelta("1", TargetReplaceSelection, true)
		r.OnDelta("2", TargetReplaceSelection, true)
		assert.Equal(t, 1, host.liveAnchors())
	})

	t.Run("panel sessions keep only geometry", func(t *testing.T) {
		host := newFakeHost("hello world", 0, 5)
		r := New(host)

		for i := 0; i < 1000; i++ {
			r.OnDelta("x", TargetFloatingPanel, true)
			r.OnDelta("xy", TargetFloatingPanel, false)
			r.End()
		}
		assert.Equal(t, 0, host.liveAnchors())
		assert.Len(t, host.livePanels(), 1)
	})
}

// =============================================================================
// FLOATING PANEL
// =============================================================================

func TestFloatingPanel_CreateThenUpdate(t *testing.T) {
	host := newFakeHost("hello world", 0, 5)
	r := New(host)

	r.OnDelta("He", TargetFloatingPanel, true)
	r.OnDelta("Hello", TargetFloatingPanel, false)

	panels := host.livePanels()
	require.Len(t, panels, 1)
	p := panels[0]
	assert.Equal(t, "Hello", p.Text, "content is overwritten with the full text")
	assert.True(t, p.Open)
	assert.Equal(t, host.rect, p.AnchorRect)
	assert.Equal(t, Point{X: 4, Y: 3}, p.Pos, "anchored just below-left of the selection")
	assert.Equal(t, 1, host.captures)
	assert.Equal(t, "hello world", host.doc, "panel sessions never touch the document text")
}

func TestFloatingPanel_SessionStartReplacesPanel(t *testing.T) {
	host := newFakeHost("hello world", 0, 5)
	r := New(host)

	r.OnDelta("first", TargetFloatingPanel, true)
	first, _ := r.Panel()

	r.OnDelta("second", TargetFloatingPanel, true)
	second, _ := r.Panel()

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []string{first.ID}, host.removed, "old panel is torn down first")
	panels := host.livePanels()
	require.Len(t, panels, 1)
	assert.Equal(t, "second", panels[0].Text)
}

func TestFloatingPanel_NonStartNeverCreatesSecondPanel(t *testing.T) {
	host := newFakeHost("hello world", 0, 5)
	r := New(host)

	r.OnDelta("a", TargetFloatingPanel, true)
	for i := 0; i < 5; i++ {
		r.OnDelta("a"+fmt.Sprint(i), TargetFloatingPanel, false)
	}
	assert.Len(t, host.livePanels(), 1)
	assert.Empty(t, host.removed)
}

func TestFloatingPanel_CreatedWhenNoneExists(t *testing.T) {
	host := newFakeHost("hello", 0, 5)
	r := New(host)

	r.OnDelta("late", TargetFloatingPanel, false)
	panels := host.livePanels()
	require.Len(t, panels, 1)
	assert.Equal(t, "late", panels[0].Text)
}

func TestFloatingPanel_NoSelectionDegradesToNoOp(t *testing.T) {
	logger, logs := testLogger()
	host := newFakeHost("hello", 0, 5)
	host.captureErr = errors.New("nothing selected")
	r := New(host, WithLogger(logger))

	assert.NotPanics(t, func() {
		r.OnDelta("x", TargetFloatingPanel, true)
	})
	assert.Empty(t, host.livePanels())
	_, ok := r.Panel()
	assert.False(t, ok)
	require.Len(t, logs.Entries, 1)
	assert.Equal(t, "RENDER_NO_SELECTION", logs.Entries[0].Message)
	assert.Equal(t, log.WarnLevel, logs.Entries[0].Level)
}

func TestFloatingPanel_HostFailureIsLoggedNotPropagated(t *testing.T) {
	logger, logs := testLogger()
	host := newFakeHost("hello", 0, 5)
	host.showErr = errors.New("render failed")
	r := New(host, WithLogger(logger))

	r.OnDelta("a", TargetFloatingPanel, true)
	r.OnDelta("ab", TargetFloatingPanel, false)

	var failures int
	for _, e := range logs.Entries {
		if e.Message == "RENDER_PANEL_FAILED" {
			failures++
		}
	}
	assert.Equal(t, 2, failures)
	assert.Equal(t, StateAccumulating, r.State())
}

// =============================================================================
// PANEL INTERACTIONS
// =============================================================================

func TestDismiss(t *testing.T) {
	host := newFakeHost("hello", 0, 5)
	r := New(host)

	assert.False(t, r.Dismiss(), "nothing to dismiss")

	r.OnDelta("x", TargetFloatingPanel, true)
	assert.True(t, r.Dismiss())
	assert.Empty(t, host.livePanels())
	assert.Equal(t, StateClosed, r.State())
	assert.True(t, r.Dismissed())

	r.OnDelta("y", TargetFloatingPanel, true)
	assert.Equal(t, StateAccumulating, r.State())
	assert.Len(t, host.livePanels(), 1)
}

func TestUpdate_DismissedSessionStaysClosed(t *testing.T) {
	host := newFakeHost("hello", 0, 5)
	r := New(host)

	assert.True(t, r.Update("a", TargetFloatingPanel, true))
	require.True(t, r.Dismiss())

	assert.False(t, r.Update("ab", TargetFloatingPanel, false))
	assert.False(t, r.Update("abc", TargetFloatingPanel, false))
	assert.Empty(t, host.livePanels(), "a dismissed panel is never recreated by its session")
	assert.Equal(t, StateClosed, r.State())

	assert.True(t, r.Update("next", TargetFloatingPanel, true), "a new session opens a new panel")
	panels := host.livePanels()
	require.Len(t, panels, 1)
	assert.Equal(t, "next", panels[0].Text)
}

func TestUpdate_DismissRacingDeltas(t *testing.T) {
	host := newFakeHost("hello", 0, 5)
	r := New(host)
	require.True(t, r.Update("a", TargetFloatingPanel, true))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		text := "a"
		for i := 0; i < 200; i++ {
			text += "b"
			r.Update(text, TargetFloatingPanel, false)
		}
	}()
	r.Dismiss()
	wg.Wait()

	assert.Empty(t, host.livePanels())
	assert.Equal(t, StateClosed, r.State())
}

func TestDrag(t *testing.T) {
	host := newFakeHost("hello", 0, 5)
	r := New(host)

	assert.False(t, r.Drag(1, 1))

	r.OnDelta("x", TargetFloatingPanel, true)
	r.End()
	require.True(t, r.Drag(3, -1))

	p, ok := r.Panel()
	require.True(t, ok)
	assert.Equal(t, Point{X: 7, Y: 2}, p.Pos)
	assert.Equal(t, host.rect, p.AnchorRect, "dragging never changes the anchor snapshot")

	r.Drag(-100, -100)
	p, _ = r.Panel()
	assert.Equal(t, Point{}, p.Pos)
}

func TestCopy_IndicatorReverts(t *testing.T) {
	host := newFakeHost("hello", 0, 5)
	timer := &manualTimer{}
	r := New(host, WithAfterFunc(timer.afterFunc))

	assert.ErrorIs(t, r.Copy(), ErrNoPanel)

	r.OnDelta("你好", TargetFloatingPanel, true)
	require.NoError(t, r.Copy())
	assert.Equal(t, "你好", host.clipboard)

	p, _ := r.Panel()
	assert.True(t, p.Copied)
	assert.Equal(t, DefaultCopyRevertDelay, timer.delay)

	timer.fn()
	p, _ = r.Panel()
	assert.False(t, p.Copied)
	assert.False(t, host.shows[len(host.shows)-1].Copied)
}

func TestCopy_RevertIgnoredForReplacedPanel(t *testing.T) {
	host := newFakeHost("hello", 0, 5)
	timer := &manualTimer{}
	r := New(host, WithAfterFunc(timer.afterFunc))

	r.OnDelta("a", TargetFloatingPanel, true)
	require.NoError(t, r.Copy())
	revert := timer.fn

	r.OnDelta("b", TargetFloatingPanel, true)
	assert.True(t, timer.stopped, "tearing down the panel stops its revert timer")

	shows := len(host.shows)
	revert()
	assert.Len(t, host.shows, shows, "a stale revert does not touch the new panel")
}

func TestCopy_ClipboardFailure(t *testing.T) {
	host := newFakeHost("hello", 0, 5)
	host.clipErr = errors.New("no clipboard")
	r := New(host)

	r.OnDelta("a", TargetFloatingPanel, true)
	assert.Error(t, r.Copy())
	p, _ := r.Panel()
	assert.False(t, p.Copied)
}

func TestCopy_RealTimerReverts(t *testing.T) {
	host := newFakeHost("hello", 0, 5)
	r := New(host, WithCopyRevertDelay(10*time.Millisecond))

	r.OnDelta("a", TargetFloatingPanel, true)
	require.NoError(t, r.Copy())

	require.Eventually(t, func() bool {
		p, _ := r.Panel()
		return !p.Copied
	}, time.Second, 5*time.Millisecond)
}

func TestOnDelta_ConcurrentCallsAreSerialized(t *testing.T) {
	host := newFakeHost("hello", 0, 5)
	r := New(host)
	r.OnDelta("", TargetFloatingPanel, true)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.OnDelta(fmt.Sprint(i), TargetFloatingPanel, false)
			r.Drag(1, 0)
		}(i)
	}
	wg.Wait()
	assert.Len(t, host.livePanels(), 1)
}

func TestTargetFromSettings(t *testing.T) {
	assert.Equal(t, TargetReplaceSelection, TargetFromSettings(true))
	assert.Equal(t, TargetFloatingPanel, TargetFromSettings(false))
	assert.Equal(t, "replace", TargetReplaceSelection.String())
	assert.Equal(t, "panel", TargetFloatingPanel.String())
}
