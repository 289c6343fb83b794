// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package editor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/boytm/browser-llm-translation-plugin/internal/completion"
	"github.com/boytm/browser-llm-translation-plugin/internal/config"
	"github.com/boytm/browser-llm-translation-plugin/internal/document"
	"github.com/boytm/browser-llm-translation-plugin/internal/render"
	"github.com/boytm/browser-llm-translation-plugin/internal/session"
	"github.com/boytm/browser-llm-translation-plugin/internal/ui/components"
	"github.com/boytm/browser-llm-translation-plugin/internal/ui/styles"
	"github.com/boytm/browser-llm-translation-plugin/internal/util"
)

// =============================================================================
// MESSAGES
// =============================================================================

// docChangedMsg means the document changed outside Update, usually because
// a session goroutine delivered a delta.
type docChangedMsg struct{}

// translateDoneMsg carries the outcome of one session.
type translateDoneMsg struct {
	result *session.Result
	err    error
}

// ConfigReloadedMsg replaces the editor's settings after the config file
// changed on disk. Local toggles are discarded.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// =============================================================================
// SETTINGS
// =============================================================================

// settingsStore is read by session goroutines and written by Update.
type settingsStore struct {
	mu sync.RWMutex
	s  config.Settings
}

func (st *settingsStore) Get() config.Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

func (st *settingsStore) Update(fn func(*config.Settings)) config.Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.s)
	return st.s
}

// =============================================================================
// MODEL
// =============================================================================

// Options configures the editor.
type Options struct {
	// Path is where ctrl+s saves. Empty for text read from stdin.
	Path string

	Settings  config.Settings
	Completer session.Completer
	// Recorder is optional.
	Recorder session.Recorder

	Theme  *styles.Theme
	Logger log.Interface

	// RenderOptions are passed to the reconciler; tests inject timers here.
	RenderOptions []render.Option
}

type dragMode int

const (
	dragNone dragMode = iota
	dragSelect
	dragPanel
)

// Model is the Bubble Tea model of the editor.
type Model struct {
	doc      *document.Document
	rec      *render.Reconciler
	sessions *session.Manager
	settings *settingsStore
	changes  chan struct{}
	ctx      context.Context

	path   string
	keys   KeyMap
	theme  *styles.Theme
	logger log.Interface

	spinner   components.Spinner
	statusBar *components.StatusBar
	inflight  int

	width, height int
	scrollY       int

	drag      dragMode
	lastMouse render.Point
	quitArmed bool
}

// New creates an editor over doc.
func New(doc *document.Document, opts Options) (Model, error) {
	if doc == nil {
		return Model{}, errors.New("editor: document is required")
	}
	if opts.Completer == nil {
		return Model{}, errors.New("editor: completer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Log
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ThemeAuto)
	}

	store := &settingsStore{s: opts.Settings}
	rec := render.New(doc, append([]render.Option{render.WithLogger(logger)}, opts.RenderOptions...)...)

	deps := session.Deps{
		Completer: opts.Completer,
		Renderer:  rec,
		Host:      doc,
		Settings:  store.Get,
		Limiter:   session.NewTriggerLimiter(),
		Logger:    logger,
	}
	if opts.Recorder != nil {
		deps.Recorder = opts.Recorder
	}
	sessions, err := session.New(deps)
	if err != nil {
		return Model{}, fmt.Errorf("failed to create session manager: %w", err)
	}

	// Buffered so a burst of deltas collapses into one redraw.
	changes := make(chan struct{}, 1)
	doc.OnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	m := Model{
		doc:       doc,
		rec:       rec,
		sessions:  sessions,
		settings:  store,
		changes:   changes,
		ctx:       context.Background(),
		path:      opts.Path,
		keys:      DefaultKeyMap(),
		theme:     theme,
		logger:    logger,
		spinner:   components.NewSpinner("Translating"),
		statusBar: components.NewStatusBar(theme),
		width:     80,
		height:    24,
	}
	if opts.Path != "" {
		m.statusBar.FileName = filepath.Base(opts.Path)
	}
	m.syncStatus()
	return m, nil
}

// Document returns the edited document.
func (m Model) Document() *document.Document {
	return m.doc
}

// Reconciler returns the panel and replacement reconciler.
func (m Model) Reconciler() *render.Reconciler {
	return m.rec
}

// Settings returns the editor's current settings, including local toggles.
func (m Model) Settings() config.Settings {
	return m.settings.Get()
}

// waitForChange blocks until the document changes.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return docChangedMsg{}
	}
}

// Init starts listening for document changes.
func (m Model) Init() tea.Cmd {
	return waitForChange(m.changes)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.statusBar.SetWidth(msg.Width)
		m.ensureCursorVisible()
		return m, nil

	case docChangedMsg:
		m.syncStatus()
		return m, waitForChange(m.changes)

	case translateDoneMsg:
		return m.handleTranslateDone(msg)

	case ConfigReloadedMsg:
		if msg.Config != nil {
			m.settings.Update(func(s *config.Settings) { *s = msg.Config.Settings })
			m.statusBar.SetNotice("config reloaded")
			m.syncStatus()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	m.statusBar.Spinner = m.spinner.View()
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		if m.doc.Dirty() && !m.quitArmed && m.path != "" {
			m.quitArmed = true
			m.statusBar.SetNotice("unsaved changes; press again to quit")
			return m, nil
		}
		m.sessions.Cancel()
		return m, tea.Quit
	}
	m.quitArmed = false

	switch {
	case key.Matches(msg, m.keys.Translate):
		return m.startTranslate()

	case key.Matches(msg, m.keys.ToggleTarget):
		s := m.settings.Update(func(s *config.Settings) { s.ReplaceText = !s.ReplaceText })
		m.statusBar.SetNotice("target: " + s.Target().String())

	case key.Matches(msg, m.keys.ToggleMode):
		s := m.settings.Update(func(s *config.Settings) {
			if s.Mode() == completion.ModeEditingAssistant {
				s.TargetMode = completion.ModeTranslate.String()
			} else {
				s.TargetMode = completion.ModeEditingAssistant.String()
			}
		})
		m.statusBar.SetNotice("mode: " + s.Mode().String())

	case key.Matches(msg, m.keys.Copy):
		if err := m.rec.Copy(); err != nil {
			if errors.Is(err, render.ErrNoPanel) {
				m.statusBar.SetError("nothing to copy")
			} else {
				m.statusBar.SetError(err.Error())
			}
		}

	case key.Matches(msg, m.keys.Escape):
		switch {
		case m.rec.Dismiss():
		case m.sessions.Cancel():
			m.statusBar.SetNotice("cancelled")
		default:
			m.doc.ClearSelection()
		}

	case key.Matches(msg, m.keys.Save):
		m.save()

	case key.Matches(msg, m.keys.SelectAll):
		m.doc.SelectAll()
	case key.Matches(msg, m.keys.Left):
		m.doc.MoveCursor(-1, 0, false)
	case key.Matches(msg, m.keys.Right):
		m.doc.MoveCursor(1, 0, false)
	case key.Matches(msg, m.keys.Up):
		m.doc.MoveCursor(0, -1, false)
	case key.Matches(msg, m.keys.Down):
		m.doc.MoveCursor(0, 1, false)
	case key.Matches(msg, m.keys.SelectLeft):
		m.doc.MoveCursor(-1, 0, true)
	case key.Matches(msg, m.keys.SelectRight):
		m.doc.MoveCursor(1, 0, true)
	case key.Matches(msg, m.keys.SelectUp):
		m.doc.MoveCursor(0, -1, true)
	case key.Matches(msg, m.keys.SelectDown):
		m.doc.MoveCursor(0, 1, true)
	case key.Matches(msg, m.keys.Home):
		m.doc.Home(false)
	case key.Matches(msg, m.keys.End):
		m.doc.End(false)
	case key.Matches(msg, m.keys.SelectHome):
		m.doc.Home(true)
	case key.Matches(msg, m.keys.SelectEnd):
		m.doc.End(true)
	case key.Matches(msg, m.keys.PageUp):
		m.doc.MoveCursor(0, -m.textHeight(), false)
	case key.Matches(msg, m.keys.PageDown):
		m.doc.MoveCursor(0, m.textHeight(), false)

	case key.Matches(msg, m.keys.Backspace):
		m.doc.Backspace()
	case key.Matches(msg, m.keys.Delete):
		m.doc.Delete()
	case key.Matches(msg, m.keys.Newline):
		m.doc.Insert("\n")
	case key.Matches(msg, m.keys.Tab):
		m.doc.Insert("\t")

	case msg.Type == tea.KeyRunes:
		m.doc.Insert(string(msg.Runes))
	case msg.Type == tea.KeySpace:
		m.doc.Insert(" ")
	}

	m.ensureCursorVisible()
	m.syncStatus()
	return m, nil
}

// =============================================================================
// TRANSLATION
// =============================================================================

func (m Model) startTranslate() (tea.Model, tea.Cmd) {
	if _, err := m.doc.SelectedText(); err != nil {
		m.statusBar.SetError("select some text first")
		return m, nil
	}

	sessions := m.sessions
	ctx := m.ctx
	run := func() tea.Msg {
		res, err := sessions.Translate(ctx)
		return translateDoneMsg{result: res, err: err}
	}

	m.inflight++
	m.statusBar.ClearMessage()
	m.statusBar.Status = components.StatusTranslating
	cmds := []tea.Cmd{run}
	if !m.spinner.IsActive() {
		cmds = append(cmds, m.spinner.Start())
	}
	m.statusBar.Spinner = m.spinner.View()
	return m, tea.Batch(cmds...)
}

func (m Model) handleTranslateDone(msg translateDoneMsg) (tea.Model, tea.Cmd) {
	if m.inflight > 0 {
		m.inflight--
	}
	if m.inflight == 0 {
		m.spinner.Stop()
		m.statusBar.Spinner = ""
		m.statusBar.Status = components.StatusReady
	}

	err := msg.err
	var cfgErr *completion.ConfigurationError
	switch {
	case err == nil:
		if r := msg.result; r != nil {
			m.statusBar.SetNotice(fmt.Sprintf("%d chars in %s", len([]rune(r.Text)), r.Duration.Round(100*time.Millisecond)))
		}
	case errors.Is(err, session.ErrSuperseded), errors.Is(err, session.ErrRateLimited):
		// A newer session owns the status line.
	case errors.Is(err, context.Canceled):
		m.statusBar.SetNotice("cancelled")
	case errors.As(err, &cfgErr):
		m.statusBar.SetError(cfgErr.UserMessage())
	case errors.Is(err, session.ErrNoSelection):
		m.statusBar.SetError("select some text first")
	default:
		m.statusBar.SetError(err.Error())
	}

	m.syncStatus()
	return m, nil
}

// =============================================================================
// FILE
// =============================================================================

func (m *Model) save() {
	if m.path == "" {
		m.statusBar.SetError("no file to save to (text came from stdin)")
		return
	}
	if err := util.AtomicWriteFile(m.path, []byte(m.doc.Text()), 0644); err != nil {
		m.logger.WithError(err).WithField("path", m.path).Error("SAVE_FAILED")
		m.statusBar.SetError("save failed: " + err.Error())
		return
	}
	m.doc.MarkClean()
	m.statusBar.SetNotice("saved " + filepath.Base(m.path))
}

// =============================================================================
// HELPERS
// =============================================================================

// syncStatus copies the live settings and document state into the status bar.
func (m *Model) syncStatus() {
	s := m.settings.Get()
	m.statusBar.Mode = s.Mode().String()
	m.statusBar.Target = s.Target().String()
	m.statusBar.Stream = s.StreamMode
	m.statusBar.Model = s.ModelName
	m.statusBar.Dirty = m.doc.Dirty()
}

// textHeight is the number of rows available for the document.
func (m Model) textHeight() int {
	if m.height <= 1 {
		return 1
	}
	return m.height - 1
}

func (m *Model) ensureCursorVisible() {
	cur := m.doc.PointAt(m.doc.Cursor())
	h := m.textHeight()
	if cur.Y < m.scrollY {
		m.scrollY = cur.Y
	}
	if cur.Y >= m.scrollY+h {
		m.scrollY = cur.Y - h + 1
	}
	if m.scrollY < 0 {
		m.scrollY = 0
	}
}

func (m *Model) scroll(delta int) {
	maxScroll := len(m.doc.Lines()) - 1
	m.scrollY += delta
	if m.scrollY > maxScroll {
		m.scrollY = maxScroll
	}
	if m.scrollY < 0 {
		m.scrollY = 0
	}
}
