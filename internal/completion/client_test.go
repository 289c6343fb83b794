// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// BUFFERED MODE TESTS
// =============================================================================

func TestComplete_ReturnsMessageContent(t *testing.T) {
	var got struct {
		method string
		header http.Header
		body   chatRequest
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.header = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got.body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"你好"}}]}`))
	}))
	defer server.Close()

	client := NewClient().WithHTTPClient(server.Client())
	req := NewRequest(server.URL, "sk-test", "qwen-plus", ModeTranslate, "hello")

	text, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "你好", text)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "application/json", got.header.Get("Accept"))
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
	assert.Equal(t, "sk-test", got.header.Get("Api-Key"))
	assert.Equal(t, "Bearer sk-test", got.header.Get("Authorization"))
	assert.Equal(t, ReferrerPolicy, got.header.Get("Referrer-Policy"))

	assert.Equal(t, "qwen-plus", got.body.Model)
	assert.False(t, got.body.Stream)
	require.Len(t, got.body.Messages, 2)
	assert.Equal(t, "system", got.body.Messages[0].Role)
	assert.Equal(t, SystemPrompt(ModeTranslate), got.body.Messages[0].Content)
	assert.Equal(t, ChatMessage{Role: "user", Content: "hello"}, got.body.Messages[1])
}

func TestComplete_EmptyContentIsNotMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
	}))
	defer server.Close()

	text, err := NewClient().Complete(context.Background(), NewRequest(server.URL, "k", "", ModeTranslate, "x"))
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "non-2xx with gateway message",
			status: http.StatusUnauthorized,
			body:   `{"error":{"code":"invalid_api_key","message":"Incorrect API key"}}`,
			check: func(t *testing.T, err error) {
				var httpErr *HTTPError
				require.ErrorAs(t, err, &httpErr)
				assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
				assert.Equal(t, "Incorrect API key", httpErr.Message)
				assert.ErrorIs(t, err, ErrHTTP)
			},
		},
		{
			name:   "non-2xx plain body",
			status: http.StatusBadGateway,
			body:   "upstream down",
			check: func(t *testing.T, err error) {
				var httpErr *HTTPError
				require.ErrorAs(t, err, &httpErr)
				assert.Equal(t, http.StatusBadGateway, httpErr.Status)
				assert.Empty(t, httpErr.Message)
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
		{
			name:   "no content field",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"role":"assistant"}}]}`,
			check: func(t *testing.T, err error) {
				var malformed *MalformedResponseError
				require.ErrorAs(t, err, &malformed)
				assert.Contains(t, malformed.Reason, "choices[0].message.content")
			},
		},
		{
			name:   "invalid json",
			status: http.StatusOK,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient().Complete(context.Background(), NewRequest(server.URL, "k", "", ModeTranslate, "x"))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestComplete_ConfigurationErrorBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := NewClient()

	_, err := client.Complete(context.Background(), NewRequest("", "k", "", ModeTranslate, "x"))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = client.CompleteStream(context.Background(), NewRequest(server.URL, "", "", ModeTranslate, "x"))
	assert.ErrorIs(t, err, ErrConfiguration)

	assert.Zero(t, hits.Load(), "no request may reach the endpoint")
}

func TestComplete_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	_, err := NewClient().Complete(context.Background(), NewRequest(endpoint, "k", "", ModeTranslate, "x"))
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestComplete_SingleAttempt(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient().Complete(context.Background(), NewRequest(server.URL, "k", "", ModeTranslate, "x"))
	assert.ErrorIs(t, err, ErrHTTP)
	assert.Equal(t, int32(1), hits.Load(), "failures are never retried")
}

func TestComplete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := NewClient().WithTimeout(50*time.Millisecond).
		Complete(context.Background(), NewRequest(server.URL, "k", "", ModeTranslate, "x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestComplete_ResponseSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"0123456789012345678901234567890123456789"}}]}`))
	}))
	defer server.Close()

	_, err := NewClient().WithMaxResponseSize(32).
		Complete(context.Background(), NewRequest(server.URL, "k", "", ModeTranslate, "x"))
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestKeyFingerprint(t *testing.T) {
	assert.Equal(t, "none", KeyFingerprint(""))
	fp := KeyFingerprint("sk-secret")
	assert.Len(t, fp, 8)
	assert.NotContains(t, fp, "secret")
	assert.Equal(t, fp, KeyFingerprint("sk-secret"))
}
