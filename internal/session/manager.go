// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/boytm/browser-llm-translation-plugin/internal/completion"
	"github.com/boytm/browser-llm-translation-plugin/internal/config"
	"github.com/boytm/browser-llm-translation-plugin/internal/render"
	"github.com/boytm/browser-llm-translation-plugin/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoSelection means the trigger fired with nothing selected.
	ErrNoSelection = errors.New("no text selected")

	// ErrRateLimited means the trigger fired faster than the limiter allows.
	ErrRateLimited = errors.New("translation triggered too quickly")

	// ErrSuperseded means a newer session cancelled this one.
	ErrSuperseded = errors.New("superseded by a newer translation")
)

// DefaultTriggerRate and DefaultTriggerBurst bound how fast a held-down
// shortcut can start sessions.
const (
	DefaultTriggerRate  = rate.Limit(4)
	DefaultTriggerBurst = 1
)

// NewTriggerLimiter returns the default trigger limiter.
func NewTriggerLimiter() *rate.Limiter {
	return rate.NewLimiter(DefaultTriggerRate, DefaultTriggerBurst)
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Completer performs completion calls. *completion.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
	CompleteStream(ctx context.Context, req completion.Request) (*completion.Stream, error)
}

// Renderer receives accumulated text. *render.Reconciler satisfies it.
//
// Update applies text unless the user dismissed the panel after the
// session's first update, and reports whether it did. The check and the
// update must be atomic with respect to a concurrent dismissal.
type Renderer interface {
	Update(text string, target render.RenderTarget, isSessionStart bool) bool
	End()
}

// Host supplies the selection and the loading indicator.
// *document.Document satisfies it.
type Host interface {
	SelectedText() (string, error)
	ShowLoading() error
	HideLoading() error
}

// Recorder stores finished sessions. *storage.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, e storage.Entry) error
}

// Deps wires a Manager. Completer, Renderer, Host and Settings are required.
type Deps struct {
	Completer Completer
	Renderer  Renderer
	Host      Host
	Settings  func() config.Settings

	// Recorder is optional.
	Recorder Recorder
	// Limiter is optional; nil disables trigger limiting.
	Limiter *rate.Limiter
	// Logger defaults to log.Log.
	Logger log.Interface
}

// =============================================================================
// RESULT
// =============================================================================

// Result describes a finished session. Text is the full accumulated output,
// which may be partial when the session ended with an error.
type Result struct {
	SessionID string
	Mode      completion.TargetMode
	Target    render.RenderTarget
	Streamed  bool
	Source    string
	Text      string
	Deltas    int
	Duration  time.Duration
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager runs translation sessions against one host and renderer.
type Manager struct {
	completer Completer
	renderer  Renderer
	host      Host
	settings  func() config.Settings
	recorder  Recorder
	limiter   *rate.Limiter
	logger    log.Interface

	// mu guards the current session and serializes renderer updates so a
	// superseded session can never slip a delta in after its replacement
	// started.
	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
}

// New creates a Manager.
func New(deps Deps) (*Manager, error) {
	if deps.Completer == nil || deps.Renderer == nil || deps.Host == nil || deps.Settings == nil {
		return nil, errors.New("session: completer, renderer, host and settings are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Log
	}
	return &Manager{
		completer: deps.Completer,
		renderer:  deps.Renderer,
		host:      deps.Host,
		settings:  deps.Settings,
		recorder:  deps.Recorder,
		limiter:   deps.Limiter,
		logger:    logger,
	}, nil
}

// Translate runs one translation action for the current selection.
//
// The returned Result is non-nil whenever a session started, including
// when it failed. Configuration problems are reported as
// *completion.ConfigurationError before any network I/O and leave the
// rendered output untouched.
func (m *Manager) Translate(ctx context.Context) (*Result, error) {
	if m.limiter != nil && !m.limiter.Allow() {
		m.logger.Debug("SESSION_RATE_LIMITED")
		return nil, ErrRateLimited
	}

	source, err := m.host.SelectedText()
	if err != nil || source == "" {
		return nil, ErrNoSelection
	}

	settings := m.settings()
	ctx, id := m.begin(ctx)
	defer m.release(id)

	res := &Result{
		SessionID: id,
		Mode:      settings.Mode(),
		Target:    settings.Target(),
		Streamed:  settings.StreamMode,
		Source:    source,
	}
	logger := m.logger.WithFields(log.Fields{
		"session": id,
		"mode":    res.Mode.String(),
		"target":  res.Target.String(),
		"stream":  res.Streamed,
	})

	// The loading indicator belongs to the live session: a superseded
	// session leaves it to its successor.
	if err := m.whileCurrent(id, m.host.ShowLoading); err != nil {
		logger.WithError(err).Warn("SESSION_LOADING_FAILED")
	}
	defer func() {
		if err := m.whileCurrent(id, m.host.HideLoading); err != nil {
			logger.WithError(err).Warn("SESSION_LOADING_FAILED")
		}
	}()

	logger.WithField("chars", len([]rune(source))).Info("SESSION_START")
	started := time.Now()

	req := settings.CompletionRequest(source, settings.StreamMode)
	if err = req.Validate(); err == nil {
		if settings.StreamMode {
			err = m.runStreamed(ctx, id, req, res)
		} else {
			err = m.runBuffered(ctx, id, req, res)
		}
	}
	res.Duration = time.Since(started)

	if errors.Is(err, context.Canceled) && !m.isCurrent(id) {
		err = fmt.Errorf("%w: %v", ErrSuperseded, err)
	}

	m.endRender(id)
	m.record(settings, res, err)

	fields := log.Fields{"deltas": res.Deltas, "duration_ms": res.Duration.Milliseconds()}
	switch {
	case err == nil:
		logger.WithFields(fields).Info("SESSION_DONE")
	case errors.Is(err, completion.ErrConfiguration):
		logger.WithError(err).Warn("SESSION_CONFIG_ERROR")
	case errors.Is(err, ErrSuperseded):
		logger.WithFields(fields).Debug("SESSION_SUPERSEDED")
	default:
		logger.WithFields(fields).WithError(err).Error("SESSION_FAILED")
	}
	return res, err
}

func (m *Manager) runBuffered(ctx context.Context, id string, req completion.Request, res *Result) error {
	text, err := m.completer.Complete(ctx, req)
	if err != nil {
		return err
	}
	res.Text = text
	if m.deliver(id, text, res.Target, 0) {
		res.Deltas = 1
	}
	return nil
}

func (m *Manager) runStreamed(ctx context.Context, id string, req completion.Request, res *Result) error {
	stream, err := m.completer.CompleteStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Next() {
		res.Text = stream.Text()
		// A dismissed panel stops receiving text; the fetch itself runs on.
		if m.deliver(id, res.Text, res.Target, res.Deltas) {
			res.Deltas++
		}
	}
	res.Text = stream.Text()
	return stream.Err()
}

// deliver forwards accumulated text if id is still the live session and,
// after the first delta, the user has not dismissed the panel.
func (m *Manager) deliver(id, text string, target render.RenderTarget, delivered int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != id {
		return false
	}
	return m.renderer.Update(text, target, delivered == 0)
}

func (m *Manager) record(settings config.Settings, res *Result, err error) {
	if m.recorder == nil || errors.Is(err, ErrSuperseded) || errors.Is(err, completion.ErrConfiguration) {
		return
	}
	e := storage.Entry{
		SessionID:  res.SessionID,
		Mode:       res.Mode.String(),
		Target:     res.Target.String(),
		Model:      settings.ModelName,
		Source:     res.Source,
		Result:     res.Text,
		Streamed:   res.Streamed,
		DurationMs: res.Duration.Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	// The session context may already be cancelled; history is still wanted.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rerr := m.recorder.Record(ctx, e); rerr != nil {
		m.logger.WithError(rerr).WithField("session", res.SessionID).Warn("HISTORY_RECORD_FAILED")
	}
}

// =============================================================================
// SESSION BOOKKEEPING
// =============================================================================

func (m *Manager) begin(parent context.Context) (context.Context, string) {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	m.current = id
	m.cancel = cancel
	return ctx, id
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != id {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.current = ""
	m.cancel = nil
}

func (m *Manager) endRender(id string) {
	_ = m.whileCurrent(id, func() error {
		m.renderer.End()
		return nil
	})
}

// whileCurrent runs fn under the manager lock if id is the live session.
func (m *Manager) whileCurrent(id string, fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != id {
		return nil
	}
	return fn()
}

func (m *Manager) isCurrent(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current == id
}

// Cancel stops the in-flight session, if any. Text already rendered stays.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return false
	}
	m.cancel()
	return true
}

// Active reports whether a session is running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != ""
}

// ActiveID returns the running session's id, or "".
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
