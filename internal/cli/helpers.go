// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Shared helpers for CLI commands: config loading, flag overrides, history
// and the completion client factory.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/apex/log"

	"github.com/boytm/browser-llm-translation-plugin/internal/completion"
	"github.com/boytm/browser-llm-translation-plugin/internal/config"
	"github.com/boytm/browser-llm-translation-plugin/internal/session"
	"github.com/boytm/browser-llm-translation-plugin/internal/storage"
)

// maxStdinSize caps text piped into translate.
const maxStdinSize = 1 << 20

// newCompleter builds the completion client. Tests replace it.
var newCompleter = func(logger log.Interface) session.Completer {
	return completion.NewClient().WithLogger(logger)
}

// signalContext is cancelled by Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadConfig returns the --config file when given, else the global config.
func loadConfig(args Args) (*config.Config, error) {
	if args.ConfigPath == "" {
		return config.Global(), nil
	}
	cfg, err := config.LoadFromPath(args.ConfigPath)
	if err != nil {
		return nil, &CommandError{Command: "config", Action: "load", Code: ExitConfigError, Err: err}
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// configFile is where config changes are written.
func configFile(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

// settingsFor applies --model, --mode and --stream/--no-stream.
func settingsFor(cfg *config.Config, args Args) (config.Settings, error) {
	s := cfg.Settings
	if args.Model != "" {
		s.ModelName = args.Model
	}
	if args.Mode != "" {
		switch args.Mode {
		case completion.ModeTranslate.String(), completion.ModeEditingAssistant.String():
			s.TargetMode = args.Mode
		default:
			return s, &ValidationError{
				Field:   "mode",
				Value:   args.Mode,
				Reason:  "unknown target mode",
				Example: "--mode translate | --mode editing_assistant",
			}
		}
	}
	if args.Stream != nil {
		s.StreamMode = *args.Stream
	}
	return s, nil
}

// openHistory opens the history store, or returns nil when history is
// disabled.
func openHistory(cfg *config.Config) (*storage.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	return storage.Open(path, storage.WithMaxEntries(cfg.History.MaxEntries))
}

// readStdin reads piped input, trimming the trailing newline.
func readStdin() (string, error) {
	data, err := io.ReadAll(io.LimitReader(stdin, maxStdinSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(data) > maxStdinSize {
		return "", &ValidationError{Field: "input", Reason: fmt.Sprintf("larger than %d bytes", maxStdinSize)}
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// formatDurationShort formats a short duration string.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
