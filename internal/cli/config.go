// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for llmtrans.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//
//	show (default)      Display current configuration
//	get <key>           Print one value
//	set <key> <value>   Set a configuration value
//	reset               Reset to default configuration
//	path                Show configuration file path
//	schema              Print the JSON Schema of the configuration
//	export <file>       Write the configuration as .toml, .yaml or .json
//
// Examples:
//
//	llmtrans config set endpoint https://api.openai.com/v1/chat/completions
//	llmtrans config set target_mode editing_assistant
//	llmtrans config set server.allowed_origins "chrome-extension://*,moz-extension://*"
//	llmtrans config get stream_mode
//	llmtrans config show --json
package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/boytm/browser-llm-translation-plugin/internal/completion"
	"github.com/boytm/browser-llm-translation-plugin/internal/config"
)

// HandleConfig handles the "config" command.
func HandleConfig(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	p := NewArgParser(args.Raw)
	switch p.Subcommand() {
	case "", "show":
		return showConfig(cfg, args)
	case "get":
		return getConfig(cfg, args, p)
	case "set":
		return setConfig(cfg, args, p)
	case "reset":
		return resetConfig(args)
	case "path":
		return showConfigPath(cfg, args)
	case "schema":
		return showSchema()
	case "export":
		return exportConfig(cfg, p)
	default:
		return ErrUnknownSubcommand("config", p.Subcommand())
	}
}

func showConfig(cfg *config.Config, args Args) error {
	safe := cfg.Redacted()
	if args.JSON {
		return NewJSONResponse("config", safe).Print()
	}

	out := stdout
	fmt.Fprintln(out, TitleStyle.Render("llmtrans configuration"))

	fmt.Fprintln(out, SectionStyle.Render("Translation"))
	fmt.Fprintln(out, RenderKV("endpoint", orUnset(safe.Endpoint)))
	fmt.Fprintln(out, RenderKV("api_key", orUnset(safe.APIKey)))
	fmt.Fprintln(out, RenderKV("target_mode", safe.TargetMode))
	fmt.Fprintln(out, RenderKV("model_name", orDefault(safe.ModelName, "(endpoint default)")))
	fmt.Fprintln(out, RenderKV("replace_text", fmt.Sprintf("%t", safe.ReplaceText)))
	fmt.Fprintln(out, RenderKV("stream_mode", fmt.Sprintf("%t", safe.StreamMode)))

	fmt.Fprintln(out, SectionStyle.Render("Server"))
	fmt.Fprintln(out, RenderKV("server.addr", safe.Server.Addr))
	fmt.Fprintln(out, RenderKV("server.auth_token", orUnset(safe.Server.AuthToken)))
	fmt.Fprintln(out, RenderKV("server.allowed_origins", strings.Join(safe.Server.AllowedOrigins, ", ")))
	fmt.Fprintln(out, RenderKV("server.rate_limit", fmt.Sprintf("%g/s burst %d", safe.Server.RateLimit, safe.Server.Burst)))

	fmt.Fprintln(out, SectionStyle.Render("History"))
	fmt.Fprintln(out, RenderKV("history.enabled", fmt.Sprintf("%t", safe.History.Enabled)))
	if path, err := safe.HistoryPath(); err == nil {
		fmt.Fprintln(out, RenderKV("history.path", path))
	}
	fmt.Fprintln(out, RenderKV("history.max_entries", fmt.Sprintf("%d", safe.History.MaxEntries)))

	fmt.Fprintln(out, SectionStyle.Render("Editor"))
	fmt.Fprintln(out, RenderKV("ui.theme", safe.UI.Theme))
	fmt.Fprintln(out, RenderKV("ui.tab_width", fmt.Sprintf("%d", safe.UI.TabWidth)))
	fmt.Fprintln(out, RenderKV("log_level", safe.LogLevel))

	if !cfg.Configured() {
		fmt.Fprintln(out)
		fmt.Fprintln(out, WarningStyle.Render(completion.MissingConfigMessage+"; run 'llmtrans setup'"))
	}
	return nil
}

func getConfig(cfg *config.Config, args Args, p *ArgParser) error {
	key := p.Positional(1)
	if key == "" {
		return ErrMissingArgument("key", "llmtrans config get endpoint")
	}
	// Secrets come out fingerprinted unless --reveal is given.
	src := cfg.Redacted()
	if p.BoolFlag("reveal") {
		src = cfg
	}
	val, err := src.Get(key)
	if err != nil {
		return &ValidationError{Field: "key", Value: key, Reason: err.Error(), Example: "keys: " + strings.Join(config.Keys(), ", ")}
	}
	if args.JSON {
		return NewJSONResponse("config", map[string]interface{}{"key": key, "value": val}).Print()
	}
	if list, ok := val.([]string); ok {
		val = strings.Join(list, ",")
	}
	fmt.Fprintln(stdout, val)
	return nil
}

func setConfig(cfg *config.Config, args Args, p *ArgParser) error {
	key, value := p.Positional(1), strings.Join(p.PositionalFrom(2), " ")
	if key == "" || p.PositionalCount() < 3 {
		return ErrMissingArgument("key and value", "llmtrans config set target_mode translate")
	}

	next := cfg.Clone()
	if err := next.Set(key, value); err != nil {
		return &ValidationError{Field: key, Value: value, Reason: err.Error()}
	}
	if err := next.Validate(); err != nil {
		return &CommandError{Command: "config", Action: "set", Code: ExitConfigError, Err: err}
	}
	if err := saveConfig(next, args); err != nil {
		return err
	}

	if !args.Quiet {
		shown := value
		if key == "api_key" || key == "server.auth_token" {
			shown = "[REDACTED]"
		}
		fmt.Fprintf(stdout, "%s %s = %s\n", SuccessStyle.Render("✓"), key, shown)
	}
	return nil
}

func resetConfig(args Args) error {
	if err := saveConfig(config.Default(), args); err != nil {
		return err
	}
	if !args.Quiet {
		fmt.Fprintln(stdout, SuccessStyle.Render("✓")+" configuration reset to defaults")
	}
	return nil
}

func saveConfig(cfg *config.Config, args Args) error {
	path, err := configFile(args)
	if err != nil {
		return err
	}
	if args.ConfigPath == "" {
		if err := config.EnsureConfigDir(); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := config.SaveTo(cfg, path); err != nil {
		return &CommandError{Command: "config", Action: "save", Code: ExitConfigError, Err: err}
	}
	config.SetGlobal(cfg)
	return nil
}

func showConfigPath(cfg *config.Config, args Args) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	file, err := configFile(args)
	if err != nil {
		return err
	}
	hist, _ := cfg.HistoryPath()
	logPath, _ := config.LogPath()

	data := ConfigPathData{Dir: dir, File: file, History: hist, Log: logPath}
	if args.JSON {
		return NewJSONResponse("config", data).Print()
	}
	fmt.Fprintln(stdout, file)
	if !args.Quiet {
		fmt.Fprintln(stdout, DimStyle.Render("history: "+hist))
		fmt.Fprintln(stdout, DimStyle.Render("log:     "+logPath))
	}
	return nil
}

func showSchema() error {
	data, err := config.Schema()
	if err != nil {
		return err
	}
	_, err = stdout.Write(append(data, '\n'))
	return err
}

func exportConfig(cfg *config.Config, p *ArgParser) error {
	path := p.Positional(1)
	if path == "" {
		return ErrMissingArgument("file", "llmtrans config export settings.yaml")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".yaml", ".yml", ".json":
	default:
		return &ValidationError{Field: "file", Value: path, Reason: "extension must be .toml, .yaml or .json"}
	}
	if err := config.SaveTo(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s exported to %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func orUnset(s string) string {
	return orDefault(s, "(not set)")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
