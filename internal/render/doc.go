// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render reconciles a growing completion result with the document.
//
// A Reconciler receives the full accumulated text of a session on every
// update and maps it onto one of two targets:
//
//   - TargetReplaceSelection: the range captured at session start is replaced
//     with the whole accumulated text each time, so a later update supersedes
//     an earlier one instead of appending to it.
//   - TargetFloatingPanel: a single panel anchored below-left of the selection
//     shows the text. A new session tears the old panel down first, so at most
//     one panel is ever live.
//
// All document mutations go through the Host interface. Host failures are
// logged and swallowed so a broken document can never abort a stream.
//
// # Key Types
//
//   - Reconciler: the state machine (Idle, Accumulating, Closed)
//   - Host: the mutation boundary implemented by the editor or a browser bridge
//   - Panel: the single floating panel's state
//
// # Usage
//
//	r := render.New(doc)
//	r.OnDelta("He", render.TargetFloatingPanel, true)
//	r.OnDelta("Hello", render.TargetFloatingPanel, false)
//	r.End()
package render
