// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diff computes word-level differences between a source text and
// its corrected version.
//
// Words are runs of letters and digits; every CJK character, punctuation
// mark and whitespace run is a token of its own, so Chinese and Japanese
// text without spaces still diffs by character.
//
// # Usage
//
//	d := diff.Words("teh quick fox", "the quick fox")
//	fmt.Println(d.Plain())   // [-teh-]{+the+} quick fox
//	fmt.Println(d.Summary()) // +1 -1
package diff
