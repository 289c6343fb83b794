// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// =============================================================================
// SPINNER TESTS
// =============================================================================

func TestNewSpinner(t *testing.T) {
	s := NewSpinner("Translating")

	if s.style != SpinnerLine {
		t.Errorf("style = %v, want %v", s.style, SpinnerLine)
	}
	if s.message != "Translating" {
		t.Errorf("message = %q", s.message)
	}
	if s.IsActive() {
		t.Error("spinner should not be active initially")
	}
	if s.View() != "" {
		t.Error("inactive spinner should render nothing")
	}
}

func TestSpinnerStyles(t *testing.T) {
	tests := []struct {
		name   string
		style  SpinnerStyle
		frames int
	}{
		{"Line", SpinnerLine, 4},
		{"Dots", SpinnerDots, 6},
		{"Braille", SpinnerBraille, len(spinner.MiniDot.Frames)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSpinner("")
			s.SetStyle(tc.style)
			if got := len(s.spinner.Spinner.Frames); got != tc.frames {
				t.Errorf("frames = %d, want %d", got, tc.frames)
			}
		})
	}
}

func TestSpinner_StartStop(t *testing.T) {
	s := NewSpinner("Translating")
	now := time.Unix(100, 0)
	s.now = func() time.Time { return now }

	cmd := s.Start()
	if cmd == nil {
		t.Fatal("Start() should return a tick command")
	}
	if !s.IsActive() {
		t.Fatal("spinner should be active after Start")
	}

	now = now.Add(3 * time.Second)
	view := s.View()
	if !strings.Contains(view, "Translating") {
		t.Errorf("view %q should contain the message", view)
	}
	if !strings.Contains(view, "(3s)") {
		t.Errorf("view %q should contain the elapsed time", view)
	}

	s.Stop()
	if s.IsActive() {
		t.Error("spinner should stop")
	}
	if _, cmd := s.Update(spinner.TickMsg{}); cmd != nil {
		t.Error("a stopped spinner must not schedule more ticks")
	}
}

func TestSpinner_NoTimer(t *testing.T) {
	s := NewSpinner("Working")
	s.SetShowTimer(false)
	s.Start()

	if strings.Contains(s.View(), "(") {
		t.Errorf("view %q should not show a timer", s.View())
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{1500 * time.Millisecond, "1s"},
		{59 * time.Second, "59s"},
		{61 * time.Second, "1m 1s"},
		{10 * time.Minute, "10m 0s"},
	}
	for _, tc := range tests {
		if got := formatElapsed(tc.d); got != tc.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
