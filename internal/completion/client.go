// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/apex/log"
)

// Configuration constants.
const (
	// DefaultTimeout bounds a buffered call. Streamed calls are bounded by
	// the caller's context only.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize caps a buffered body.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	// ReferrerPolicy is sent on every request for gateway compatibility.
	ReferrerPolicy = "strict-origin-when-cross-origin"
)

// PERFORMANCE: Shared transport keeps connections to the endpoint warm
// between translations.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 4,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
}

// ParseErrorHook receives event lines that were skipped.
type ParseErrorHook func(err *StreamParseError)

// Client performs completion calls. It holds no per-request state and is
// safe for concurrent use once configured.
type Client struct {
	httpClient      *http.Client
	timeout         time.Duration
	maxResponseSize int64
	logger          log.Interface
	onParseError    ParseErrorHook
}

// NewClient creates a client with the shared transport and default limits.
func NewClient() *Client {
	c := &Client{
		// No client-level timeout: streamed bodies may legitimately run long.
		httpClient:      &http.Client{Transport: sharedTransport},
		timeout:         DefaultTimeout,
		maxResponseSize: MaxResponseSize,
		logger:          log.Log,
	}
	c.onParseError = c.logParseError
	return c
}

// WithHTTPClient replaces the HTTP client (tests use httptest clients).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithTimeout sets the deadline applied to buffered calls. Zero disables it.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// WithMaxResponseSize sets the buffered body limit in bytes.
func (c *Client) WithMaxResponseSize(n int64) *Client {
	c.maxResponseSize = n
	return c
}

// WithLogger sets the logger used for request diagnostics.
func (c *Client) WithLogger(l log.Interface) *Client {
	c.logger = l
	return c
}

// WithParseErrorHook replaces the default hook, which logs at debug level.
func (c *Client) WithParseErrorHook(h ParseErrorHook) *Client {
	if h == nil {
		h = func(*StreamParseError) {}
	}
	c.onParseError = h
	return c
}

// KeyFingerprint returns a short sha256 fingerprint of an API key.
// SECURITY: keys are never logged, only their fingerprint.
func KeyFingerprint(apiKey string) string {
	if apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:4])
}

// =============================================================================
// BUFFERED MODE
// =============================================================================

// Complete performs a buffered call and returns choices[0].message.content.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	req.Stream = false
	if err := req.Validate(); err != nil {
		return "", err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := c.readResponse(resp)
	if err != nil {
		return "", &NetworkError{Err: err}
	}

	c.logger.WithFields(log.Fields{
		"status":   resp.StatusCode,
		"bytes":    len(body),
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Debug("COMPLETION_RESPONSE")

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &MalformedResponseError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	content, ok := parsed.content()
	if !ok {
		return "", &MalformedResponseError{Reason: "missing choices[0].message.content"}
	}
	return content, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do sends the request and returns a 2xx response. Any failure before the
// body is available is returned typed; nothing is retried.
func (c *Client) do(ctx context.Context, req Request) (*http.Response, error) {
	payload, err := json.Marshal(req.body())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid endpoint: %v", err)}
	}
	setHeaders(httpReq, req.APIKey)
	c.logRequest(httpReq, req)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, handleErrorResponse(resp.StatusCode, body)
	}
	return resp, nil
}

// setHeaders sets the header set expected by OpenAI-compatible gateways.
// The key travels twice because some gateways read "api-key" and others
// read the bearer token.
func setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Referrer-Policy", ReferrerPolicy)
}

// logRequest logs the call without headers or body.
// SECURITY: only the key fingerprint is logged.
func (c *Client) logRequest(httpReq *http.Request, req Request) {
	host := httpReq.URL.Host
	if u, err := url.Parse(req.Endpoint); err == nil {
		host = u.Host
	}
	c.logger.WithFields(log.Fields{
		"host":   host,
		"model":  req.ModelName,
		"stream": req.Stream,
		"key":    KeyFingerprint(req.APIKey),
	}).Debug("COMPLETION_REQUEST")
}

// readResponse reads the body up to the configured limit.
func (c *Client) readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > c.maxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", c.maxResponseSize)
	}
	return body, nil
}

// handleErrorResponse turns a non-2xx answer into an *HTTPError, lifting the
// gateway's message out of an OpenAI-style error body when there is one.
func handleErrorResponse(status int, body []byte) error {
	httpErr := &HTTPError{Status: status}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		httpErr.Message = apiErr.Error.Message
	}
	return httpErr
}

func (c *Client) logParseError(err *StreamParseError) {
	c.logger.WithError(err.Err).WithField("line", err.Line).Debug("STREAM_EVENT_SKIPPED")
}
