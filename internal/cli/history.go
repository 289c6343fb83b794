// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Translation history command.
//
// Command: history [subcommand]
// Aliases: hist
//
// Subcommands:
//
//	list [--limit N]            Recent entries (default)
//	search <query> [--limit N]  Entries whose source or result contains query
//	show <id>                   One entry as markdown; an ID prefix is enough
//	delete <id>                 Remove one entry
//	export <file> [--limit N]   Write entries to .md, .html or .json
//	clear --confirm             Remove every entry
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boytm/browser-llm-translation-plugin/internal/export"
	"github.com/boytm/browser-llm-translation-plugin/internal/storage"
)

const defaultHistoryLimit = 20

// HandleHistory handles the "history" command.
func HandleHistory(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return &CommandError{
			Command: "history",
			Code:    ExitConfigError,
			Err:     errors.New("history is disabled; run 'llmtrans config set history.enabled true'"),
		}
	}
	store, err := openHistory(cfg)
	if err != nil {
		return &CommandError{Command: "history", Action: "open", Err: err}
	}
	defer store.Close()

	ctx := context.Background()
	p := NewArgParser(args.Raw)
	limit := p.FlagIntOrDefault("limit", defaultHistoryLimit)

	switch p.Subcommand() {
	case "", "list", "ls":
		entries, err := store.List(ctx, limit)
		if err != nil {
			return err
		}
		return printEntries(entries, args)

	case "search", "find":
		query := strings.Join(p.PositionalFrom(1), " ")
		if query == "" {
			return ErrMissingArgument("query", "llmtrans history search 你好")
		}
		entries, err := store.Search(ctx, query, limit)
		if err != nil {
			return err
		}
		return printEntries(entries, args)

	case "show":
		e, err := findEntry(ctx, store, p.Positional(1))
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("history", e).Print()
		}
		fmt.Fprintln(stdout, renderAnswer(e.Markdown(), args.Quiet))
		return nil

	case "delete", "rm":
		e, err := findEntry(ctx, store, p.Positional(1))
		if err != nil {
			return err
		}
		if err := store.Delete(ctx, e.ID); err != nil {
			return err
		}
		if !args.Quiet {
			fmt.Fprintf(stdout, "%s deleted %s\n", SuccessStyle.Render("✓"), e.ID)
		}
		return nil

	case "export":
		return exportHistory(ctx, store, args, p)

	case "clear":
		if !p.BoolFlag("confirm") {
			return &ValidationError{Field: "confirm", Reason: "clearing history cannot be undone", Example: "llmtrans history clear --confirm"}
		}
		n, _ := store.Count(ctx)
		if err := store.Clear(ctx); err != nil {
			return err
		}
		if !args.Quiet {
			fmt.Fprintf(stdout, "%s removed %d entries\n", SuccessStyle.Render("✓"), n)
		}
		return nil

	default:
		return ErrUnknownSubcommand("history", p.Subcommand())
	}
}

func printEntries(entries []storage.Entry, args Args) error {
	if args.JSON {
		if entries == nil {
			entries = []storage.Entry{}
		}
		return NewJSONResponse("history", HistoryData{Count: len(entries), Entries: entries}).Print()
	}
	fmt.Fprint(stdout, storage.FormatList(entries))
	if len(entries) == 0 {
		fmt.Fprintln(stdout)
	}
	return nil
}

// findEntry resolves a full ID or a unique ID prefix.
func findEntry(ctx context.Context, store *storage.Store, id string) (*storage.Entry, error) {
	if id == "" {
		return nil, ErrMissingArgument("id", "llmtrans history show 3f2a9c1d")
	}
	e, err := store.Get(ctx, id)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	var match *storage.Entry
	for i := range all {
		if !strings.HasPrefix(all[i].ID, id) {
			continue
		}
		if match != nil {
			return nil, &ValidationError{Field: "id", Value: id, Reason: "prefix matches more than one entry"}
		}
		match = &all[i]
	}
	if match == nil {
		return nil, &NotFoundError{Resource: "history entry", ID: id}
	}
	return match, nil
}

// exportHistory writes every entry (or the newest --limit) to a file. The
// HTML theme follows ui.theme.
func exportHistory(ctx context.Context, store *storage.Store, args Args, p *ArgParser) error {
	path := p.Positional(1)
	if path == "" {
		return ErrMissingArgument("file", "llmtrans history export history.html")
	}
	if _, err := export.ForPath(path, nil); err != nil {
		return &ValidationError{Field: "file", Value: path, Reason: err.Error()}
	}

	entries, err := store.List(ctx, p.FlagIntOrDefault("limit", 0))
	if err != nil {
		return err
	}

	opts := export.DefaultOptions()
	if cfg, err := loadConfig(args); err == nil && cfg.UI.Theme == "dark" {
		opts.Theme = "dark"
	}
	written, err := export.ToFile(entries, path, opts)
	if err != nil {
		return &CommandError{Command: "history", Action: "export", Err: err}
	}

	if args.JSON {
		return NewJSONResponse("history", map[string]interface{}{"path": written, "count": len(entries)}).Print()
	}
	if !args.Quiet {
		fmt.Fprintf(stdout, "%s exported %d entries to %s\n", SuccessStyle.Render("✓"), len(entries), written)
	}
	return nil
}
