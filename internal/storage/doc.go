// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides translation history persistence for llmtrans.
//
// History lives in a SQLite database (pure Go driver) and records every
// translation action, including failed ones, with its mode, target,
// duration and result.
//
// # Key Types
//
//   - Store: the history database
//   - Entry: one recorded translation action
//
// # Usage
//
//	store, err := storage.Open(path, storage.WithMaxEntries(1000))
//	err = store.Record(ctx, storage.Entry{Source: "你好", Result: "Hello"})
//	recent, err := store.List(ctx, 20)
//	hits, err := store.Search(ctx, "hello", 20)
//
// # Storage Location
//
// The database defaults to ~/.llmtrans/history.db.
package storage
