// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/boytm/browser-llm-translation-plugin/internal/util"
)

// MissingConfigMessage is shown to the user instead of a translation when
// the endpoint, key or target is not set.
const MissingConfigMessage = "关键参数没有设置完全"

// Sentinels matched by the typed errors' Is methods.
var (
	ErrConfiguration     = errors.New("completion not configured")
	ErrNetwork           = errors.New("network error")
	ErrHTTP              = errors.New("http error")
	ErrMalformedResponse = errors.New("malformed response")
)

// ConfigurationError means the request was rejected before any network call.
type ConfigurationError struct {
	Missing []string
	Reason  string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("completion not configured: missing %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("completion not configured: %s", e.Reason)
}

// UserMessage is the literal text surfaced to the user.
func (e *ConfigurationError) UserMessage() string {
	return MissingConfigMessage
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NetworkError wraps a transport failure.
type NetworkError struct {
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is matches ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// HTTPError is a non-2xx answer from the endpoint.
type HTTPError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
	}
	return fmt.Sprintf("http %d %s", e.Status, http.StatusText(e.Status))
}

// Is matches ErrHTTP.
func (e *HTTPError) Is(target error) bool {
	return target == ErrHTTP
}

// MalformedResponseError means a 2xx body did not have the expected shape.
type MalformedResponseError struct {
	Reason string
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	return "malformed response: " + e.Reason
}

// Is matches ErrMalformedResponse.
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// StreamParseError describes a single event line that could not be decoded.
// It never aborts a stream; it is only handed to the parse-error hook.
type StreamParseError struct {
	Line string
	Err  error
}

// Error implements the error interface.
func (e *StreamParseError) Error() string {
	return fmt.Sprintf("skipping malformed stream event %q: %v", util.TruncateRunes(e.Line, 80), e.Err)
}

// Unwrap returns the JSON error.
func (e *StreamParseError) Unwrap() error {
	return e.Err
}
