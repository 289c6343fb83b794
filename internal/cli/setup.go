// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// setup.go - First-run wizard.
//
// Command: setup
//
// Asks for the same fields as the extension's settings form: endpoint, API
// key, target mode, model name, stream mode and replace mode. The key is
// read without echo. Enter keeps the current value.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/boytm/browser-llm-translation-plugin/internal/completion"
	"github.com/boytm/browser-llm-translation-plugin/internal/config"
)

// HandleSetup handles the "setup" command.
func HandleSetup(args Args) error {
	if err := RequiresTTY("run setup"); err != nil {
		return err
	}
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	w := &wizard{in: bufio.NewReader(stdin), secret: readPassword}
	next, err := w.run(cfg)
	if err != nil {
		return err
	}
	if err := saveConfig(next, args); err != nil {
		return err
	}

	path, _ := configFile(args)
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "%s saved to %s\n", SuccessStyle.Render("✓"), path)
	fmt.Fprintln(stdout, DimStyle.Render(`Try: llmtrans t "Hello, world"`))
	return nil
}

// =============================================================================
// WIZARD
// =============================================================================

type wizard struct {
	in     *bufio.Reader
	secret func() ([]byte, error)
}

func (w *wizard) run(cfg *config.Config) (*config.Config, error) {
	next := cfg.Clone()

	fmt.Fprintln(stdout, TitleStyle.Render("llmtrans setup"))
	fmt.Fprintln(stdout, DimStyle.Render("Press Enter to keep the value in brackets."))
	fmt.Fprintln(stdout)

	for {
		endpoint, err := w.prompt("Endpoint URL", next.Endpoint)
		if err != nil {
			return nil, err
		}
		if endpoint == "" || validURL(endpoint) {
			next.Endpoint = endpoint
			break
		}
		fmt.Fprintln(stdout, WarningStyle.Render("  must be an http(s) URL"))
	}

	keyHint := ""
	if next.APIKey != "" {
		keyHint = "keep sha256:" + completion.KeyFingerprint(next.APIKey)
	}
	key, err := w.promptSecret("API key", keyHint)
	if err != nil {
		return nil, err
	}
	if key != "" {
		next.APIKey = key
	}

	modes := []string{completion.ModeTranslate.String(), completion.ModeEditingAssistant.String()}
	mode, err := w.choice("Target mode", modes, next.TargetMode)
	if err != nil {
		return nil, err
	}
	next.TargetMode = mode

	if next.ModelName, err = w.prompt("Model name (empty for endpoint default)", next.ModelName); err != nil {
		return nil, err
	}
	if next.StreamMode, err = w.yesNo("Stream responses", next.StreamMode); err != nil {
		return nil, err
	}
	if next.ReplaceText, err = w.yesNo("Replace selected text instead of showing a panel", next.ReplaceText); err != nil {
		return nil, err
	}

	if err := next.Validate(); err != nil {
		return nil, &CommandError{Command: "setup", Code: ExitConfigError, Err: err}
	}
	return next, nil
}

func (w *wizard) readLine() (string, error) {
	line, err := w.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (w *wizard) prompt(label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(stdout, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(stdout, "%s: ", label)
	}
	input, err := w.readLine()
	if err != nil {
		return "", err
	}
	if input == "" {
		return current, nil
	}
	return input, nil
}

func (w *wizard) promptSecret(label, hint string) (string, error) {
	if hint != "" {
		fmt.Fprintf(stdout, "%s [%s]: ", label, hint)
	} else {
		fmt.Fprintf(stdout, "%s: ", label)
	}
	b, err := w.secret()
	fmt.Fprintln(stdout)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (w *wizard) choice(label string, options []string, current string) (string, error) {
	for i, opt := range options {
		fmt.Fprintf(stdout, "  %d) %s\n", i+1, opt)
	}
	for {
		input, err := w.prompt(label, current)
		if err != nil {
			return "", err
		}
		for i, opt := range options {
			if input == opt || input == fmt.Sprint(i+1) {
				return opt, nil
			}
		}
		fmt.Fprintln(stdout, WarningStyle.Render("  choose 1-"+fmt.Sprint(len(options))))
	}
}

func (w *wizard) yesNo(label string, current bool) (bool, error) {
	suffix := "[y/N]"
	if current {
		suffix = "[Y/n]"
	}
	for {
		fmt.Fprintf(stdout, "%s %s: ", label, suffix)
		input, err := w.readLine()
		if err != nil {
			return false, err
		}
		if input == "" {
			return current, nil
		}
		if v, err := ParseBoolString(input); err == nil {
			return v, nil
		}
	}
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
