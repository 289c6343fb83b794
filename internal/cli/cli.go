// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing for llmtrans.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Standard streams. Tests swap them.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdEdit Command = iota
	CmdTranslate
	CmdChat
	CmdConfig
	CmdSetup
	CmdHistory
	CmdServe
	CmdVersion
	CmdHelp
)

// String returns the command name used in JSON output and logs.
func (c Command) String() string {
	switch c {
	case CmdEdit:
		return "edit"
	case CmdTranslate:
		return "translate"
	case CmdChat:
		return "chat"
	case CmdConfig:
		return "config"
	case CmdSetup:
		return "setup"
	case CmdHistory:
		return "history"
	case CmdServe:
		return "serve"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	Model      string
	Mode       string // "translate" or "editing_assistant"
	Stream     *bool  // nil keeps the configured stream_mode
	Diff       bool   // show word changes after the answer
	ConfigPath string

	// Command-specific
	Subcommand string
	Text       string // translate input
	File       string // edit target
	Addr       string // serve listen address

	// Raw args remaining after the command word.
	Raw []string
}

const usageText = `llmtrans - LLM translation and editing assistant

Selected text goes to an OpenAI-compatible chat completions endpoint with a
translate or editing-assistant system prompt. The answer replaces the text or
appears in a floating result panel.

Usage:
  llmtrans [edit] [file]          Open the terminal editor (default)
  llmtrans translate, t [text]    Translate text from args or stdin
  llmtrans chat                   Translate line by line interactively
  llmtrans config [subcommand]    View and modify configuration
  llmtrans setup                  First-run wizard
  llmtrans history [subcommand]   Translation history
  llmtrans serve [--addr ADDR]    Run the local HTTP bridge
  llmtrans version                Show version
  llmtrans help                   Show this help

Config Commands:
  llmtrans config show            Show configuration (API key fingerprinted)
  llmtrans config get <key>       Print one value
  llmtrans config set <key> <v>   Set a value
  llmtrans config reset           Reset to defaults
  llmtrans config path            Show config file location
  llmtrans config schema          Print the JSON Schema of the config
  llmtrans config export <file>   Write the config as .toml, .yaml or .json

History Commands:
  llmtrans history list [--limit N]
  llmtrans history search <query> [--limit N]
  llmtrans history show <id>
  llmtrans history clear --confirm

Editor Keys:
  ctrl+t translate selection      ctrl+r toggle panel/replace
  ctrl+e toggle translate/edit    ctrl+y copy panel text
  esc    close panel or cancel    ctrl+s save    ctrl+q quit

Global Flags:
  -q, --quiet         Minimal output
  -v, --verbose       Debug logging
  --json              Output in JSON format
  --model NAME        Override model_name
  --mode MODE         translate or editing_assistant
  --stream            Force streaming
  --no-stream         Force a single buffered response
  --diff              Show word changes (translate, chat)
  --config FILE       Use this config file

Examples:
  llmtrans                            Open an empty editor
  llmtrans notes.md                   Edit notes.md
  llmtrans t "Good morning"           Translate one phrase
  echo "teh quick fox" | llmtrans t --mode editing_assistant
  llmtrans config set endpoint https://api.openai.com/v1/chat/completions
  llmtrans serve --addr 127.0.0.1:8787

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Fprintf(stdout, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Fprintf(stdout, "llmtrans version %s\n", Version)
	fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(stdout, "  Build date: %s\n", BuildDate)
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses command-line arguments and returns the command and args.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdEdit, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	rest := remaining[1:]
	parsedArgs.Raw = rest

	switch cmd {
	case "edit", "e":
		if len(rest) > 0 {
			parsedArgs.File = rest[0]
		}
		return CmdEdit, parsedArgs

	case "translate", "t":
		parsedArgs.Text = strings.Join(rest, " ")
		return CmdTranslate, parsedArgs

	case "chat":
		return CmdChat, parsedArgs

	case "config":
		if len(rest) > 0 {
			parsedArgs.Subcommand = rest[0]
		}
		return CmdConfig, parsedArgs

	case "setup":
		return CmdSetup, parsedArgs

	case "history", "hist":
		if len(rest) > 0 {
			parsedArgs.Subcommand = rest[0]
		}
		return CmdHistory, parsedArgs

	case "serve", "server":
		p := NewArgParser(rest)
		parsedArgs.Addr = p.Flag("addr")
		return CmdServe, parsedArgs

	case "version":
		return CmdVersion, parsedArgs

	case "help":
		return CmdHelp, parsedArgs

	default:
		// Anything else is a file to edit.
		parsedArgs.File = remaining[0]
		parsedArgs.Raw = remaining
		return CmdEdit, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	// value returns the flag's value from --flag=value or the next arg.
	value := func(i *int, arg, name string) (string, bool) {
		if strings.HasPrefix(arg, name+"=") {
			return strings.TrimPrefix(arg, name+"="), true
		}
		if arg == name && *i+1 < len(args) {
			*i++
			return args[*i], true
		}
		return "", false
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
			continue
		case "-v", "--verbose":
			parsedArgs.Verbose = true
			continue
		case "--json":
			parsedArgs.JSON = true
			continue
		case "--stream":
			on := true
			parsedArgs.Stream = &on
			continue
		case "--no-stream":
			off := false
			parsedArgs.Stream = &off
			continue
		case "--diff":
			parsedArgs.Diff = true
			continue
		case "-h", "--help":
			remaining = append(remaining, "help")
			continue
		case "--version":
			remaining = append(remaining, "version")
			continue
		}

		if v, ok := value(&i, arg, "--model"); ok {
			parsedArgs.Model = v
			continue
		}
		if v, ok := value(&i, arg, "--mode"); ok {
			parsedArgs.Mode = v
			continue
		}
		if v, ok := value(&i, arg, "--config"); ok {
			parsedArgs.ConfigPath = v
			continue
		}
		remaining = append(remaining, arg)
	}

	return remaining, parsedArgs
}

// =============================================================================
// SIMPLE COMMAND HANDLERS
// =============================================================================

// HandleVersion handles the "version" command with JSON output support.
func HandleVersion(args Args) error {
	if args.JSON {
		data := VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}
		return NewJSONResponse("version", data).Print()
	}
	PrintVersion()
	return nil
}

// HandleHelp handles the "help" command.
func HandleHelp() error {
	PrintUsage()
	return nil
}
