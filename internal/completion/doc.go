// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion talks to OpenAI-compatible chat completion endpoints.
//
// A translation is a single chat turn: a system prompt chosen by TargetMode
// followed by the user's selected text. The call is made either buffered
// (one JSON body) or streamed (server-sent "data:" lines), and is never
// retried.
//
// # Key Types
//
//   - Client: HTTP client with builder-style options
//   - Request: endpoint, key, model, prompt and text for one call
//   - Stream: lazy, finite sequence of text deltas with the running aggregate
//   - EventReader: incremental UTF-8 line framer for SSE bodies
//
// # Usage
//
//	req := completion.NewRequest(endpoint, apiKey, model, completion.ModeTranslate, text)
//	stream, err := completion.NewClient().CompleteStream(ctx, req)
//	if err != nil {
//		return err
//	}
//	defer stream.Close()
//	for stream.Next() {
//		fmt.Print(stream.Delta())
//	}
//	return stream.Err()
//
// # Errors
//
// Validation failures are *ConfigurationError and happen before any network
// I/O. Transport failures are *NetworkError, non-2xx answers are *HTTPError and
// an unexpected buffered body is *MalformedResponseError. A malformed event
// line inside a stream is skipped and only reported to the parse-error hook.
package completion
