// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive line-by-line translation.
//
// Command: chat
//
// Every line typed is translated and streamed back. Slash commands change
// the session's settings without touching the config file:
//
//	/mode translate|editing_assistant
//	/stream on|off
//	/model NAME
//	/diff on|off
//	/help
//	/quit
//
// Ctrl+C cancels a running translation; at the prompt it exits.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/apex/log"
	"github.com/peterh/liner"

	"github.com/boytm/browser-llm-translation-plugin/internal/completion"
	"github.com/boytm/browser-llm-translation-plugin/internal/config"
	"github.com/boytm/browser-llm-translation-plugin/internal/session"
	"github.com/boytm/browser-llm-translation-plugin/internal/storage"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads one line of input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeSlash)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and closes the liner.
func (c *ChatCLI) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

var slashCommands = []string{"/mode translate", "/mode editing_assistant", "/stream on", "/stream off", "/model ", "/diff on", "/diff off", "/help", "/quit"}

func completeSlash(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}
	var out []string
	for _, c := range slashCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// SESSION STATE
// =============================================================================

// chatSession is the state of one chat run.
type chatSession struct {
	settings  config.Settings
	completer session.Completer
	store     *storage.Store
	quiet     bool
	diff      bool

	mu     sync.Mutex
	cancel context.CancelFunc
	turns  int
	chars  int
}

func (s *chatSession) setCancel(c context.CancelFunc) {
	s.mu.Lock()
	s.cancel = c
	s.mu.Unlock()
}

// interrupt cancels the running translation, if any.
func (s *chatSession) interrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

// =============================================================================
// COMMAND
// =============================================================================

// HandleChat handles the "chat" command.
func HandleChat(args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}
	in := NewChatCLI()
	defer in.Close()
	return runChat(context.Background(), args, newCompleter(log.Log), in)
}

func runChat(ctx context.Context, args Args, c session.Completer, in lineReader) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	settings, err := settingsFor(cfg, args)
	if err != nil {
		return err
	}

	store, err := openHistory(cfg)
	if err != nil {
		log.WithError(err).Warn("HISTORY_OPEN_FAILED")
	}
	if store != nil {
		defer store.Close()
	}

	sess := &chatSession{settings: settings, completer: c, store: store, quiet: args.Quiet, diff: args.Diff}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()
	go func() {
		for range sigChan {
			if sess.interrupt() {
				fmt.Fprintln(stderr, "\n"+WarningStyle.Render("[cancelled]"))
			}
		}
	}()

	if !args.Quiet {
		printChatBanner(sess.settings)
	}

	for {
		input, err := in.ReadInput(PromptStyle.Render("llmtrans> "))
		if err != nil {
			// liner.ErrPromptAborted (Ctrl+C) or io.EOF (Ctrl+D)
			fmt.Fprintln(stdout)
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				return err
			}
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if !sess.handleSlash(input) {
				break
			}
			continue
		}

		sess.translate(ctx, input)
	}

	if !args.Quiet {
		fmt.Fprintln(stdout, DimStyle.Render(fmt.Sprintf("%d translations, %d chars", sess.turns, sess.chars)))
	}
	return nil
}

func (s *chatSession) translate(parent context.Context, input string) {
	ctx, cancel := context.WithCancel(parent)
	s.setCancel(cancel)
	defer func() {
		s.setCancel(nil)
		cancel()
	}()

	res, err := translateText(ctx, s.completer, s.settings, input, func(delta string) {
		fmt.Fprint(stdout, delta)
	})
	switch {
	case res.Streamed && res.Text != "":
		fmt.Fprintln(stdout)
	case !res.Streamed && err == nil:
		fmt.Fprintln(stdout, renderAnswer(res.Text, s.quiet))
	}

	if s.store != nil && !errors.Is(err, completion.ErrConfiguration) {
		recordCLI(s.store, s.settings, res, err)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		DisplayError("chat", err, false)
		return
	}
	if s.diff {
		printDiff(input, res.Text)
	}
	s.turns++
	s.chars += len([]rune(res.Text))
}

// handleSlash runs a slash command. It returns false to end the session.
func (s *chatSession) handleSlash(input string) bool {
	fields := strings.Fields(input)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "/quit", "/exit", "/q":
		return false

	case "/mode":
		switch arg {
		case "translate", "t":
			s.settings.TargetMode = completion.ModeTranslate.String()
		case "editing_assistant", "edit", "e":
			s.settings.TargetMode = completion.ModeEditingAssistant.String()
		default:
			s.notice(WarningStyle.Render("usage: /mode translate|editing_assistant"))
			return true
		}
		s.notice("mode: " + s.settings.Mode().String())

	case "/stream":
		on, err := ParseBoolString(arg)
		if err != nil {
			s.notice(WarningStyle.Render("usage: /stream on|off"))
			return true
		}
		s.settings.StreamMode = on
		s.notice(fmt.Sprintf("stream: %t", on))

	case "/diff":
		on, err := ParseBoolString(arg)
		if err != nil {
			s.notice(WarningStyle.Render("usage: /diff on|off"))
			return true
		}
		s.diff = on
		s.notice(fmt.Sprintf("diff: %t", on))

	case "/model":
		s.settings.ModelName = arg
		if arg == "" {
			s.notice("model: (endpoint default)")
		} else {
			s.notice("model: " + arg)
		}

	case "/help", "/?":
		for _, c := range slashCommands {
			fmt.Fprintln(stdout, "  "+strings.TrimSpace(c))
		}

	default:
		s.notice(WarningStyle.Render("unknown command " + fields[0] + "; try /help"))
	}
	return true
}

func (s *chatSession) notice(msg string) {
	fmt.Fprintln(stdout, DimStyle.Render(msg))
}

func printChatBanner(s config.Settings) {
	fmt.Fprintln(stdout, TitleStyle.Render("llmtrans chat"))
	fmt.Fprintln(stdout, RenderKV("Mode", s.Mode().String()))
	fmt.Fprintln(stdout, RenderKV("Stream", fmt.Sprintf("%t", s.StreamMode)))
	if s.ModelName != "" {
		fmt.Fprintln(stdout, RenderKV("Model", s.ModelName))
	}
	if !s.Configured() {
		fmt.Fprintln(stdout, WarningStyle.Render(completion.MissingConfigMessage+"; run 'llmtrans setup'"))
	}
	fmt.Fprintln(stdout, DimStyle.Render("Type text to translate. /help for commands, Ctrl+D to exit."))
}
