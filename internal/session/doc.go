// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs one translation action end to end: read the
// selection, call the completion endpoint (buffered or streamed), forward
// the accumulated text to the renderer and record the outcome.
//
// At most one session is live. Starting a new one cancels the previous
// fetch, and any delta the old session still produces is dropped.
package session
