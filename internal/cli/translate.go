// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// translate.go - One-shot translation.
//
// Command: translate [text...]
// Aliases: t
//
// The text comes from the arguments, or from stdin when it is piped.
// Streamed answers are written to stdout delta by delta; buffered answers
// are rendered as markdown on a terminal.
//
// Examples:
//
//	llmtrans t "Good morning"
//	cat draft.txt | llmtrans t --mode editing_assistant --no-stream
//	llmtrans t --json "Bonjour"
//	llmtrans t --mode editing_assistant --diff "teh quick fox"
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"

	"github.com/boytm/browser-llm-translation-plugin/internal/completion"
	"github.com/boytm/browser-llm-translation-plugin/internal/config"
	"github.com/boytm/browser-llm-translation-plugin/internal/diff"
	"github.com/boytm/browser-llm-translation-plugin/internal/session"
	"github.com/boytm/browser-llm-translation-plugin/internal/storage"
)

// HandleTranslate handles the "translate" command.
func HandleTranslate(args Args) error {
	ctx, cancel := signalContext()
	defer cancel()
	return runTranslate(ctx, args, newCompleter(log.Log))
}

func runTranslate(ctx context.Context, args Args, c session.Completer) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	settings, err := settingsFor(cfg, args)
	if err != nil {
		return err
	}

	text := args.Text
	if text == "" && !IsTTY() {
		if text, err = readStdin(); err != nil {
			return err
		}
	}
	if text == "" {
		return ErrMissingArgument("text", `llmtrans translate "Good morning"`)
	}

	store, err := openHistory(cfg)
	if err != nil {
		log.WithError(err).Warn("HISTORY_OPEN_FAILED")
	}
	if store != nil {
		defer store.Close()
	}

	// JSON output is one document; stream internally, print once.
	echo := !args.JSON
	res, err := translateText(ctx, c, settings, text, func(delta string) {
		if echo {
			fmt.Fprint(stdout, delta)
		}
	})
	if store != nil && !errors.Is(err, completion.ErrConfiguration) {
		recordCLI(store, settings, res, err)
	}

	if args.JSON {
		if err != nil {
			return err
		}
		data := TranslateData{
			Source:     text,
			Text:       res.Text,
			Mode:       res.Mode.String(),
			Model:      settings.ModelName,
			Streamed:   res.Streamed,
			Deltas:     res.Deltas,
			DurationMs: res.Duration.Milliseconds(),
		}
		if args.Diff {
			data.Diff = diff.Words(text, res.Text).Plain()
		}
		return NewJSONResponse("translate", data).Print()
	}

	switch {
	case res.Streamed:
		if res.Text != "" {
			fmt.Fprintln(stdout)
		}
	case err == nil:
		fmt.Fprintln(stdout, renderAnswer(res.Text, args.Quiet))
	}
	if err != nil {
		return err
	}
	if args.Diff {
		printDiff(text, res.Text)
	}

	if !args.Quiet && IsStdoutTTY() {
		fmt.Fprintln(stderr, DimStyle.Render(fmt.Sprintf("%s · %d chars · %s",
			res.Mode, len([]rune(res.Text)), formatDurationShort(res.Duration))))
	}
	return nil
}

// translateText runs one request. Streamed requests call onDelta for each
// delta; buffered requests never call it. The result carries any partial
// text even when err is set.
func translateText(ctx context.Context, c session.Completer, s config.Settings, text string, onDelta func(string)) (*session.Result, error) {
	res := &session.Result{
		SessionID: uuid.NewString(),
		Mode:      s.Mode(),
		Target:    s.Target(),
		Streamed:  s.StreamMode,
		Source:    text,
	}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	req := s.CompletionRequest(text, s.StreamMode)
	if err := req.Validate(); err != nil {
		return res, err
	}

	if !s.StreamMode {
		out, err := c.Complete(ctx, req)
		res.Text = out
		return res, err
	}

	stream, err := c.CompleteStream(ctx, req)
	if err != nil {
		return res, err
	}
	defer stream.Close()
	res.Text, err = stream.Each(func(delta string) {
		res.Deltas++
		onDelta(delta)
	})
	return res, err
}

func recordCLI(store *storage.Store, s config.Settings, res *session.Result, err error) {
	e := storage.Entry{
		SessionID:  "cli-" + res.SessionID,
		Mode:       res.Mode.String(),
		Target:     "stdout",
		Model:      s.ModelName,
		Source:     res.Source,
		Result:     res.Text,
		Streamed:   res.Streamed,
		DurationMs: res.Duration.Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rerr := store.Record(ctx, e); rerr != nil {
		log.WithError(rerr).Warn("HISTORY_RECORD_FAILED")
	}
}

// renderAnswer renders markdown on a terminal and returns plain text
// otherwise.
func renderAnswer(text string, quiet bool) string {
	if quiet || !IsStdoutTTY() {
		return text
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(GetTerminalWidth()-2),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

// printDiff writes the word changes from source to answer. Colors are used
// on a terminal and git's plain word-diff markers otherwise.
func printDiff(source, answer string) {
	d := diff.Words(source, answer)
	if !d.Changed() {
		fmt.Fprintln(stdout, DimStyle.Render("(no changes)"))
		return
	}
	out := d.Plain()
	if IsStdoutTTY() {
		del := ErrorStyle.Copy().Strikethrough(true)
		out = d.Render(
			func(s string) string { return del.Render(s) },
			func(s string) string { return SuccessStyle.Render(s) },
		)
	}
	fmt.Fprintln(stdout, SeparatorStyle.Render("── changes "+d.Summary()+" ──"))
	fmt.Fprintln(stdout, out)
}
