// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package editor is the terminal host for translations: a small Bubble Tea
// text editor whose selection can be sent to the completion endpoint.
//
// The result either replaces the selection in place or appears in a floating
// panel titled 翻译结果, drawn over the text at the selection's bottom-left
// corner. The panel has a copy button, a close button and a draggable
// header; clicking anywhere outside it closes it.
//
// # Keys
//
//	ctrl+t   translate the selection
//	ctrl+r   toggle panel / replace
//	ctrl+e   toggle translate / editing assistant
//	ctrl+y   copy the panel text
//	esc      close the panel, or cancel the running translation
//	ctrl+s   save
//	ctrl+q   quit
//
// Sessions run on Bubble Tea's command goroutines. They mutate the document
// directly; the document's change hook wakes the view through a one-slot
// channel, so a burst of deltas costs one redraw.
package editor
