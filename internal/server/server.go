// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/boytm/browser-llm-translation-plugin/internal/completion"
	"github.com/boytm/browser-llm-translation-plugin/internal/config"
	"github.com/boytm/browser-llm-translation-plugin/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize is the maximum size for a request body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxTextLength is the maximum number of runes accepted for translation.
	MaxTextLength = 100000
)

// Outcome labels for llmtrans_requests_total.
const (
	outcomeOK         = "ok"
	outcomeBadRequest = "bad_request"
	outcomeConfig     = "config_error"
	outcomeHTTP       = "http_error"
	outcomeNetwork    = "network_error"
	outcomeMalformed  = "malformed_response"
	outcomeCanceled   = "canceled"
	outcomeClientGone = "client_gone"
	outcomeInternal   = "error"
)

// ErrClientGone marks a relay cut short because the browser side stopped
// reading.
var ErrClientGone = errors.New("client disconnected")

// ============================================================================
// DEPENDENCIES
// ============================================================================

// Completer performs completion calls. *completion.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
	CompleteStream(ctx context.Context, req completion.Request) (*completion.Stream, error)
}

// Recorder stores bridge translations. *storage.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, e storage.Entry) error
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the local HTTP bridge. A browser content script or popup posts
// selected text here; the bridge holds the settings and API key and relays
// the completion, buffered or as server-sent events.
type Server struct {
	cfg       config.ServerConfig
	completer Completer
	settings  func() config.Settings
	recorder  Recorder
	logger    log.Interface
	version   string
	started   time.Time

	registry *prometheus.Registry
	metrics  *Metrics
	limiter  *RateLimiter

	router  *http.ServeMux
	handler http.Handler

	mu     sync.Mutex
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l log.Interface) Option {
	return func(s *Server) { s.logger = l }
}

// WithRecorder records every bridge translation in history.
func WithRecorder(r Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a Server. settings is read on every request so a config
// reload takes effect without a restart.
func New(cfg config.ServerConfig, completer Completer, settings func() config.Settings, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		completer: completer,
		settings:  settings,
		logger:    log.Log,
		version:   "dev",
		started:   time.Now(),
		registry:  prometheus.NewRegistry(),
		router:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Addr == "" {
		s.cfg.Addr = config.DefaultServerAddr
	}

	s.metrics = NewMetrics(s.registry)
	if s.cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(s.cfg.RateLimit, s.cfg.Burst, 10*time.Minute)
	}

	s.setupRoutes()
	s.handler = s.buildChain()
	return s
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /v1/translate", s.handleTranslate)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

func (s *Server) buildChain() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(NewCORSConfig(s.cfg.AllowedOrigins)),
	}
	if s.limiter != nil {
		middlewares = append(middlewares, RateLimitMiddleware(s.limiter, s.logger))
	}
	if s.cfg.AuthToken != "" {
		middlewares = append(middlewares, AuthMiddleware(s.cfg.AuthToken, s.logger, "/health"))
	}
	return Chain(middlewares...)(s.router)
}

// Handler returns the middleware-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the Prometheus registry behind /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// ============================================================================
// TRANSLATE HANDLER
// ============================================================================

// TranslateRequest is the body of POST /v1/translate. Unset fields fall back
// to the configured settings.
type TranslateRequest struct {
	Text   string `json:"text"`
	Mode   string `json:"mode,omitempty"`
	Model  string `json:"model,omitempty"`
	Stream *bool  `json:"stream,omitempty"`
}

// TranslateResponse is the buffered answer.
type TranslateResponse struct {
	Text  string `json:"text"`
	Mode  string `json:"mode"`
	Model string `json:"model,omitempty"`
}

// StreamEvent is one SSE data payload of a streamed answer.
type StreamEvent struct {
	Delta string `json:"delta,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleTranslate handles POST /v1/translate.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var body TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.reject(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds maximum size of %d bytes", MaxRequestBodySize))
			return
		}
		s.logger.WithError(err).Debug("TRANSLATE_BAD_BODY")
		s.reject(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		s.reject(w, http.StatusBadRequest, "text is required")
		return
	}
	if len([]rune(body.Text)) > MaxTextLength {
		s.reject(w, http.StatusBadRequest, fmt.Sprintf("text exceeds maximum length of %d", MaxTextLength))
		return
	}

	settings := s.settings()
	if body.Mode != "" {
		settings.TargetMode = body.Mode
	}
	if body.Model != "" {
		settings.ModelName = body.Model
	}
	stream := settings.StreamMode
	if body.Stream != nil {
		stream = *body.Stream
	}

	req := settings.CompletionRequest(body.Text, stream)
	if err := req.Validate(); err != nil {
		s.observe(settings.Mode().String(), stream, outcomeConfig, 0)
		s.writeCompletionError(w, err)
		return
	}

	if stream {
		s.streamTranslate(w, r, settings, req)
	} else {
		s.bufferedTranslate(w, r, settings, req)
	}
}

func (s *Server) bufferedTranslate(w http.ResponseWriter, r *http.Request, settings config.Settings, req completion.Request) {
	start := time.Now()
	mode := settings.Mode().String()

	text, err := s.completer.Complete(r.Context(), req)
	elapsed := time.Since(start)
	s.observe(mode, false, outcomeOf(err), elapsed)
	s.record(settings, req, text, false, elapsed, err)

	if err != nil {
		s.writeCompletionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, TranslateResponse{Text: text, Mode: mode, Model: settings.ModelName})
}

func (s *Server) streamTranslate(w http.ResponseWriter, r *http.Request, settings config.Settings, req completion.Request) {
	start := time.Now()
	mode := settings.Mode().String()

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.reject(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	stream, err := s.completer.CompleteStream(r.Context(), req)
	if err != nil {
		elapsed := time.Since(start)
		s.observe(mode, true, outcomeOf(err), elapsed)
		s.record(settings, req, "", true, elapsed, err)
		s.writeCompletionError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var writeErr error
	for stream.Next() {
		s.metrics.StreamDeltas.Inc()
		if werr := sendEvent(w, flusher, StreamEvent{Delta: stream.Delta()}); werr != nil {
			writeErr = fmt.Errorf("%w: %v", ErrClientGone, werr)
			break
		}
	}

	err = stream.Err()
	if writeErr != nil {
		err = writeErr
	}
	elapsed := time.Since(start)
	s.observe(mode, true, outcomeOf(err), elapsed)
	s.record(settings, req, stream.Text(), true, elapsed, err)

	if writeErr != nil {
		s.logger.WithError(writeErr).Warn("STREAM_CLIENT_GONE")
		return
	}
	if err != nil {
		// Headers are gone; the failure travels in-band.
		sendEvent(w, flusher, StreamEvent{Error: err.Error()})
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", completion.DoneSentinel)
	flusher.Flush()
}

// sendEvent writes a single SSE event.
func sendEvent(w http.ResponseWriter, flusher http.Flusher, ev StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (s *Server) record(settings config.Settings, req completion.Request, text string, streamed bool, elapsed time.Duration, err error) {
	if s.recorder == nil || errors.Is(err, context.Canceled) {
		return
	}
	e := storage.Entry{
		SessionID:  "bridge-" + uuid.NewString(),
		Mode:       settings.Mode().String(),
		Target:     "bridge",
		Model:      req.ModelName,
		Source:     req.UserText,
		Result:     text,
		Streamed:   streamed,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rerr := s.recorder.Record(ctx, e); rerr != nil {
		s.logger.WithError(rerr).Warn("HISTORY_RECORD_FAILED")
	}
}

func (s *Server) observe(mode string, stream bool, outcome string, elapsed time.Duration) {
	streamLabel := "false"
	if stream {
		streamLabel = "true"
	}
	s.metrics.Requests.WithLabelValues(mode, streamLabel, outcome).Inc()
	if elapsed > 0 {
		s.metrics.Duration.WithLabelValues(mode, streamLabel).Observe(elapsed.Seconds())
	}
}

// ============================================================================
// ERROR MAPPING
// ============================================================================

// StatusFor maps a completion error to the bridge's HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, completion.ErrConfiguration):
		return http.StatusPreconditionFailed
	case errors.Is(err, completion.ErrHTTP), errors.Is(err, completion.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, completion.ErrNetwork):
		if isTimeout(err) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrClientGone):
		return outcomeClientGone
	case errors.Is(err, completion.ErrConfiguration):
		return outcomeConfig
	case errors.Is(err, completion.ErrHTTP):
		return outcomeHTTP
	case errors.Is(err, completion.ErrMalformedResponse):
		return outcomeMalformed
	case errors.Is(err, context.Canceled):
		return outcomeCanceled
	case errors.Is(err, completion.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return outcomeNetwork
	default:
		return outcomeInternal
	}
}

func (s *Server) writeCompletionError(w http.ResponseWriter, err error) {
	status := StatusFor(err)

	var cfgErr *completion.ConfigurationError
	if errors.As(err, &cfgErr) {
		s.writeError(w, status, "configuration_error", cfgErr.UserMessage(), 0)
		return
	}

	var httpErr *completion.HTTPError
	if errors.As(err, &httpErr) {
		s.writeError(w, status, "upstream_error", err.Error(), httpErr.Status)
		return
	}

	s.logger.WithError(err).Warn("TRANSLATE_FAILED")
	errType := "upstream_error"
	if status == http.StatusInternalServerError {
		errType = "internal_error"
	}
	s.writeError(w, status, errType, err.Error(), 0)
}

func (s *Server) reject(w http.ResponseWriter, status int, message string) {
	s.metrics.Requests.WithLabelValues("", "", outcomeBadRequest).Inc()
	s.writeError(w, status, "invalid_request_error", message, 0)
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Configured bool   `json:"configured"`
	Mode       string `json:"mode"`
	Stream     bool   `json:"stream"`
	Uptime     string `json:"uptime"`
}

// handleHealth handles GET /health. An unconfigured bridge is "degraded":
// it is up, but every translation will answer 412.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	settings := s.settings()
	health := HealthResponse{
		Status:     "ok",
		Version:    s.version,
		Configured: settings.Configured(),
		Mode:       settings.Mode().String(),
		Stream:     settings.StreamMode,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
	}
	if !health.Configured {
		health.Status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Start listens on the configured address and serves until Shutdown.
// It returns http.ErrServerClosed after a graceful stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Streams can outlive any fixed write deadline; the completion
		// client's own timeout bounds them.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.WithFields(log.Fields{
		"addr":    ln.Addr().String(),
		"version": s.version,
		"auth":    s.cfg.AuthToken != "",
	}).Info("SERVER_START")
	return srv.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("SERVER_SHUTDOWN")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request. UpstreamStatus is set when the
// completion endpoint itself answered with an error status.
type ErrorDetail struct {
	Message        string `json:"message"`
	Type           string `json:"type"`
	Code           int    `json:"code"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, errType, message string, upstream int) {
	s.writeJSON(w, status, ErrorBody{Error: ErrorDetail{
		Message:        message,
		Type:           errType,
		Code:           status,
		UpstreamStatus: upstream,
	}})
}
