// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for llmtrans.
//
// Supports TOML, YAML and JSON configuration files, a .env file, environment
// variable overrides, validation, hot reload and a JSON Schema export.
//
// # Key Types
//
//   - Settings: the values one translation action reads
//   - Config: Settings plus server, history, UI and logging sections
//   - Watcher: reloads a config file when it changes on disk
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (LLMTRANS_*)
//   - ~/.llmtrans/.env (never overrides the process environment)
//   - ~/.llmtrans/config.toml, config.yaml or config.json (first found)
//   - Built-in defaults
//
// The directory can be moved with LLMTRANS_HOME.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	req := cfg.CompletionRequest(text, cfg.StreamMode)
package config
