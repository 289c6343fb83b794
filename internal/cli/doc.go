// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the command handlers for
// llmtrans.
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdTranslate:
//	    err = cli.HandleTranslate(args)
//	case cli.CmdServe:
//	    err = cli.HandleServe(args)
//	// ... other commands
//	}
//	if err != nil {
//	    cli.DisplayError(cmd.String(), err, args.JSON)
//	    os.Exit(cli.GetExitCode(err))
//	}
//
// # Commands
//
//   - edit: full-screen editor; select text and press ctrl+t
//   - translate: one-shot translation of args or stdin
//   - chat: line-by-line interactive translation
//   - config, setup: view, change and create the settings
//   - history: recorded translations
//   - serve: local HTTP bridge for the browser extension
//
// Commands that print data accept --json. Exit codes are listed in
// errors.go.
package cli
