// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// edit.go - Full-screen editor with selection translation.
//
// Command: edit [file]
// Aliases: e, or just a file name
//
// Opens file (created on save if missing), or text piped on stdin. Select
// text and press Ctrl+T to translate it. Logs go to llmtrans.log in the
// config directory while the editor owns the terminal.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/boytm/browser-llm-translation-plugin/internal/config"
	"github.com/boytm/browser-llm-translation-plugin/internal/document"
	"github.com/boytm/browser-llm-translation-plugin/internal/ui/editor"
	"github.com/boytm/browser-llm-translation-plugin/internal/ui/styles"
)

// maxEditSize caps files opened in the editor.
const maxEditSize = 8 << 20

// HandleEdit handles the "edit" command.
func HandleEdit(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	if !IsStdoutTTY() {
		return &TTYRequiredError{Operation: "edit"}
	}
	content, err := readEditInput(args.File)
	if err != nil {
		return err
	}

	restore, err := logToFile()
	if err != nil {
		return err
	}
	defer restore()

	settings, err := settingsFor(cfg, args)
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		log.WithError(err).Warn("HISTORY_OPEN_FAILED")
	}

	opts := editor.Options{
		Path:      args.File,
		Settings:  settings,
		Completer: newCompleter(log.Log),
		Theme:     styles.NewTheme(cfg.UI.Theme),
		Logger:    log.Log,
	}
	if store != nil {
		defer store.Close()
		opts.Recorder = store
	}

	doc := document.New(content, document.WithTabWidth(cfg.UI.TabWidth))
	m, err := editor.New(doc, opts)
	if err != nil {
		return err
	}

	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}
	if !IsTTY() {
		progOpts = append(progOpts, tea.WithInputTTY())
	}
	p := tea.NewProgram(m, progOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchConfig(ctx, args, p)

	log.WithFields(log.Fields{"file": args.File, "runes": len([]rune(content))}).Info("EDITOR_START")
	if _, err := p.Run(); err != nil {
		return &CommandError{Command: "edit", Err: err}
	}
	log.Info("EDITOR_EXIT")
	return nil
}

// readEditInput returns the file's contents, or stdin when no file is given
// and stdin is piped. A missing file is an empty new document.
func readEditInput(path string) (string, error) {
	if path == "" {
		if IsTTY() {
			return "", nil
		}
		return readStdin()
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		return "", err
	case info.IsDir():
		return "", &ValidationError{Field: "file", Value: path, Reason: "is a directory"}
	case info.Size() > maxEditSize:
		return "", &ValidationError{Field: "file", Value: path, Reason: fmt.Sprintf("larger than %d MiB", maxEditSize>>20)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// logToFile points the global logger at the log file and returns a func
// that restores the previous handler.
func logToFile() (func(), error) {
	path, err := config.LogPath()
	if err != nil {
		return nil, err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger, ok := log.Log.(*log.Logger)
	if !ok {
		f.Close()
		return func() {}, nil
	}
	prev := logger.Handler
	logger.Handler = text.New(f)
	return func() {
		logger.Handler = prev
		f.Close()
	}, nil
}

// watchConfig forwards config file changes to the running editor.
func watchConfig(ctx context.Context, args Args, p *tea.Program) {
	path, err := configFile(args)
	if err != nil {
		return
	}
	w, err := config.Watch(ctx, path, func(next *config.Config) {
		config.SetGlobal(next)
		p.Send(editor.ConfigReloadedMsg{Config: next})
	}, config.WithWatchLogger(log.Log))
	if err != nil {
		log.WithError(err).Warn("CONFIG_WATCH_FAILED")
		return
	}
	go func() {
		<-ctx.Done()
		w.Close()
	}()
}
