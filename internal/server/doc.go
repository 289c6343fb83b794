// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server implements the local translation bridge.
//
// A browser extension cannot keep an API key away from page scripts, so the
// bridge holds the settings and key on the user's machine and relays the
// completion call. Content scripts post the selected text and receive the
// answer either as one JSON body or as server-sent events.
//
// # Endpoints
//
//   - POST /v1/translate - Translate or edit text, buffered or streamed
//   - GET  /health       - Liveness plus whether settings are complete
//   - GET  /metrics      - Prometheus metrics
//
// # Errors
//
// Failures before the first byte use the JSON envelope
// {"error":{"message","type","code"}}. Incomplete settings answer 412 with
// the same user-facing message the editor shows; upstream HTTP errors answer
// 502 with upstream_status set; network timeouts answer 504. Once an event
// stream has started, a failure is sent in-band as data: {"error":"..."}.
//
// # Middleware
//
// Requests pass through panic recovery, security headers, logging, CORS
// (extension origins by default), a per-IP token bucket and, when a token is
// configured, bearer authentication.
//
// # Usage
//
//	srv := server.New(cfg.Server, completion.NewClient(), settingsFn,
//		server.WithRecorder(store))
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
