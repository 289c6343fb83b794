// llmtrans - LLM translation and editing assistant for the terminal and the
// browser extension bridge.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"

	llmcli "github.com/boytm/browser-llm-translation-plugin/internal/cli"
	"github.com/boytm/browser-llm-translation-plugin/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	llmcli.Version = Version
	llmcli.GitCommit = GitCommit
	llmcli.BuildDate = BuildDate
}

func main() {
	cmd, args := llmcli.Parse()
	setupLogging(args)

	var err error
	switch cmd {
	case llmcli.CmdEdit:
		err = llmcli.HandleEdit(args)
	case llmcli.CmdTranslate:
		err = llmcli.HandleTranslate(args)
	case llmcli.CmdChat:
		err = llmcli.HandleChat(args)
	case llmcli.CmdConfig:
		err = llmcli.HandleConfig(args)
	case llmcli.CmdSetup:
		err = llmcli.HandleSetup(args)
	case llmcli.CmdHistory:
		err = llmcli.HandleHistory(args)
	case llmcli.CmdServe:
		err = llmcli.HandleServe(args)
	case llmcli.CmdVersion:
		err = llmcli.HandleVersion(args)
	case llmcli.CmdHelp:
		err = llmcli.HandleHelp()
	default:
		llmcli.PrintUsage()
		os.Exit(llmcli.ExitUsageError)
	}

	if err != nil {
		llmcli.DisplayError(cmd.String(), err, args.JSON)
		os.Exit(llmcli.GetExitCode(err))
	}
}

// setupLogging sends logs to stderr at the configured level. --verbose
// forces debug.
func setupLogging(args llmcli.Args) {
	log.SetHandler(cli.New(os.Stderr))

	if args.Verbose {
		log.SetLevel(log.DebugLevel)
		return
	}
	name := config.Global().LogLevel
	if args.ConfigPath != "" {
		if cfg, err := config.LoadFromPath(args.ConfigPath); err == nil {
			name = cfg.LogLevel
		}
	}
	level, err := log.ParseLevel(name)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
