// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/apex/log"
	"golang.org/x/text/encoding/unicode"
)

// STREAMING: incremental UTF-8 decoding, line carry and skip-on-error parsing.

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

const (
	// DoneSentinel is the payload that ends a stream.
	DoneSentinel = "[DONE]"

	dataPrefix = "data:"

	// readChunkSize is how much decoded text is pulled per read.
	readChunkSize = 4 * 1024
)

// =============================================================================
// EVENT READER
// =============================================================================

// EventReader frames a server-sent event body into "data:" payloads.
//
// Bytes are decoded as UTF-8 incrementally, so a multi-byte character split
// across reads is held back until it is complete. Decoded text is split on
// newlines and the trailing partial segment is carried into the next read, so
// no line is examined before it is known to be complete. The emitted payloads
// are therefore identical however the underlying reader chunks the body.
type EventReader struct {
	src     io.Reader
	buf     []byte
	carry   []byte
	pending []string
	eof     bool
}

// NewEventReader wraps r in an incremental UTF-8 decoder.
func NewEventReader(r io.Reader) *EventReader {
	return &EventReader{
		src: unicode.UTF8.NewDecoder().Reader(r),
		buf: make([]byte, readChunkSize),
	}
}

// Next returns the next "data:" payload with the prefix stripped and
// surrounding whitespace trimmed. Lines without the prefix are skipped.
// It returns io.EOF once the body is exhausted.
func (e *EventReader) Next() (string, error) {
	for {
		for len(e.pending) > 0 {
			line := strings.TrimSpace(e.pending[0])
			e.pending = e.pending[1:]
			if !strings.HasPrefix(line, dataPrefix) {
				continue
			}
			return strings.TrimSpace(line[len(dataPrefix):]), nil
		}
		if e.eof {
			return "", io.EOF
		}
		if err := e.fill(); err != nil {
			return "", err
		}
	}
}

// fill performs one read and moves every complete line into pending.
func (e *EventReader) fill() error {
	n, err := e.src.Read(e.buf)
	if n > 0 {
		data := append(e.carry, e.buf[:n]...)
		for {
			i := bytes.IndexByte(data, '\n')
			if i < 0 {
				break
			}
			e.pending = append(e.pending, string(data[:i]))
			data = data[i+1:]
		}
		// Copy so the carry never aliases buf.
		e.carry = append([]byte(nil), data...)
	}

	switch {
	case err == io.EOF:
		e.eof = true
		// The body ended without a newline; the last segment is complete now.
		if len(e.carry) > 0 {
			e.pending = append(e.pending, string(e.carry))
			e.carry = nil
		}
		return nil
	case err != nil:
		return err
	}
	return nil
}

// =============================================================================
// STREAM
// =============================================================================

// Stream is a lazy, finite, non-restartable sequence of completion deltas.
//
//	for s.Next() {
//		use(s.Delta())
//	}
//	if err := s.Err(); err != nil { ... }
//	full := s.Text()
type Stream struct {
	ctx          context.Context
	body         io.ReadCloser
	events       *EventReader
	onParseError ParseErrorHook
	logger       log.Interface
	started      time.Time

	delta  string
	text   strings.Builder
	count  int
	err    error
	closed bool
}

// CompleteStream performs a streamed call. Validation, transport and status
// failures are returned here; once a Stream is returned, the body is being
// consumed and only mid-stream read failures surface through Err.
func (c *Client) CompleteStream(ctx context.Context, req Request) (*Stream, error) {
	req.Stream = true
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	return &Stream{
		ctx:          ctx,
		body:         resp.Body,
		events:       NewEventReader(resp.Body),
		onParseError: c.onParseError,
		logger:       c.logger,
		started:      time.Now(),
	}, nil
}

// NewStream builds a Stream over an arbitrary SSE body. CompleteStream uses
// it for HTTP bodies; tests and relays use it directly.
func NewStream(ctx context.Context, body io.ReadCloser, hook ParseErrorHook) *Stream {
	if hook == nil {
		hook = func(*StreamParseError) {}
	}
	return &Stream{
		ctx:          ctx,
		body:         body,
		events:       NewEventReader(body),
		onParseError: hook,
		logger:       log.Log,
		started:      time.Now(),
	}
}

// Next advances to the next non-empty delta. It returns false at the
// [DONE] sentinel, at end of body, on a read failure or when the context is
// cancelled; Err tells those apart.
func (s *Stream) Next() bool {
	if s.closed {
		return false
	}
	for {
		if err := s.ctx.Err(); err != nil {
			s.finish(err)
			return false
		}

		payload, err := s.events.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.finish(nil)
			} else if ctxErr := s.ctx.Err(); ctxErr != nil {
				s.finish(ctxErr)
			} else {
				s.finish(&NetworkError{Err: err})
			}
			return false
		}

		if payload == DoneSentinel {
			s.finish(nil)
			return false
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			s.onParseError(&StreamParseError{Line: payload, Err: err})
			continue
		}

		content := chunk.GetContent()
		if content == "" {
			continue
		}
		s.delta = content
		s.text.WriteString(content)
		s.count++
		return true
	}
}

// Delta returns the fragment produced by the last successful Next.
func (s *Stream) Delta() string {
	return s.delta
}

// Text returns the concatenation of every delta emitted so far.
func (s *Stream) Text() string {
	return s.text.String()
}

// Count returns the number of deltas emitted so far.
func (s *Stream) Count() int {
	return s.count
}

// Err returns the error that ended the stream, or nil for a normal end.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the body. It is safe to call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// Each drains the stream, calling fn for every delta in order, and returns
// the aggregate text.
func (s *Stream) Each(fn func(delta string)) (string, error) {
	defer s.Close()
	for s.Next() {
		fn(s.Delta())
	}
	return s.Text(), s.Err()
}

func (s *Stream) finish(err error) {
	s.err = err
	s.delta = ""
	s.logger.WithFields(log.Fields{
		"deltas":   s.count,
		"chars":    len([]rune(s.text.String())),
		"duration": time.Since(s.started).Round(time.Millisecond).String(),
		"error":    errString(err),
	}).Debug("STREAM_DONE")
	s.Close()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
