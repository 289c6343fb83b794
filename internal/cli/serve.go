// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Local HTTP bridge for the browser extension.
//
// Command: serve [--addr host:port]
// Aliases: server
//
// Runs until Ctrl+C or SIGTERM. Edits to the config file apply to the next
// request without a restart; the listen address and auth settings need one.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/apex/log"

	"github.com/boytm/browser-llm-translation-plugin/internal/config"
	"github.com/boytm/browser-llm-translation-plugin/internal/server"
	"github.com/boytm/browser-llm-translation-plugin/internal/session"
)

const shutdownTimeout = 5 * time.Second

// HandleServe handles the "serve" command.
func HandleServe(args Args) error {
	ctx, cancel := signalContext()
	defer cancel()
	return runServe(ctx, args, newCompleter(log.Log), nil)
}

// runServe serves on ln, or on the configured address when ln is nil,
// until ctx is done.
func runServe(ctx context.Context, args Args, c session.Completer, ln net.Listener) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	srvCfg := cfg.Server
	if args.Addr != "" {
		srvCfg.Addr = args.Addr
	}

	store, err := openHistory(cfg)
	if err != nil {
		log.WithError(err).Warn("HISTORY_OPEN_FAILED")
	}
	opts := []server.Option{server.WithLogger(log.Log), server.WithVersion(Version)}
	if store != nil {
		defer store.Close()
		opts = append(opts, server.WithRecorder(store))
	}

	// The model flags override whatever the config file says, reload or not.
	settings := func() config.Settings {
		s, err := settingsFor(config.Global(), args)
		if err != nil {
			return config.Global().Settings
		}
		return s
	}
	if _, err := settingsFor(cfg, args); err != nil {
		return err
	}

	srv := server.New(srvCfg, c, settings, opts...)

	if path, err := configFile(args); err == nil {
		if args.ConfigPath == "" {
			_ = config.EnsureConfigDir()
		}
		w, err := config.Watch(ctx, path, func(next *config.Config) {
			config.SetGlobal(next)
			log.WithField("path", path).Info("CONFIG_RELOADED")
		}, config.WithWatchLogger(log.Log))
		if err != nil {
			log.WithError(err).Warn("CONFIG_WATCH_FAILED")
		} else {
			defer w.Close()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if ln != nil {
			errCh <- srv.Serve(ln)
			return
		}
		errCh <- srv.Start()
	}()

	if !args.Quiet {
		addr := srv.Addr()
		if ln != nil {
			addr = ln.Addr().String()
		}
		fmt.Fprintf(stderr, "%s bridge listening on http://%s\n", SuccessStyle.Render("✓"), addr)
		if !cfg.Configured() {
			fmt.Fprintln(stderr, WarningStyle.Render("endpoint or api_key not set; requests will fail until 'llmtrans setup' is run"))
		}
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return &CommandError{Command: "serve", Err: err}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return &CommandError{Command: "serve", Action: "shutdown", Err: err}
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return &CommandError{Command: "serve", Err: err}
	}
	return nil
}
