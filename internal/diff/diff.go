// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package diff

import (
	"fmt"
	"strings"
	"unicode"
)

// =============================================================================
// DIFF TYPES
// =============================================================================

// OpType is the kind of a diff operation.
type OpType int

const (
	// Equal is text present in both versions
	Equal OpType = iota
	// Insert is text only in the new version
	Insert
	// Delete is text only in the old version
	Delete
)

// String returns the string representation of an op type.
func (t OpType) String() string {
	switch t {
	case Equal:
		return "equal"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is one run of equal, inserted or deleted text.
type Op struct {
	Type OpType
	Text string
}

// Stats counts changed tokens, ignoring whitespace.
type Stats struct {
	Insertions int
	Deletions  int
}

// Diff is the result of comparing two texts.
type Diff struct {
	Old   string
	New   string
	Ops   []Op
	Stats Stats
}

// MaxTokens bounds the quadratic LCS table. Longer inputs are reported as
// one replacement.
const MaxTokens = 4000

// =============================================================================
// DIFF COMPUTATION
// =============================================================================

// Words diffs oldText against newText token by token.
func Words(oldText, newText string) *Diff {
	d := &Diff{Old: oldText, New: newText}

	a, b := Tokenize(oldText), Tokenize(newText)
	var ops []Op
	if len(a) > MaxTokens || len(b) > MaxTokens {
		ops = replaceAll(a, b)
	} else {
		ops = computeOps(a, b)
	}

	d.Ops = merge(ops)
	for _, op := range ops {
		if strings.TrimSpace(op.Text) == "" {
			continue
		}
		switch op.Type {
		case Insert:
			d.Stats.Insertions++
		case Delete:
			d.Stats.Deletions++
		}
	}
	return d
}

// Changed reports whether the texts differ.
func (d *Diff) Changed() bool {
	for _, op := range d.Ops {
		if op.Type != Equal {
			return true
		}
	}
	return false
}

// Tokenize splits s into words, whitespace runs and single characters.
func Tokenize(s string) []string {
	var tokens []string
	runes := []rune(s)
	for i := 0; i < len(runes); {
		r := runes[i]
		j := i + 1
		switch {
		case unicode.IsSpace(r):
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
		case isWordRune(r):
			for j < len(runes) && isWordRune(runes[j]) {
				j++
			}
		}
		tokens = append(tokens, string(runes[i:j]))
		i = j
	}
	return tokens
}

// isWordRune reports letters and digits that join into words. Han, kana and
// hangul stand alone.
func isWordRune(r rune) bool {
	if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '_'
}

// computeOps walks the LCS table of a and b.
func computeOps(a, b []string) []Op {
	m, n := len(a), len(b)

	// dp[i][j] is the LCS length of a[i:] and b[j:].
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else {
				dp[i][j] = max(dp[i+1][j], dp[i][j+1])
			}
		}
	}

	var ops []Op
	i, j := 0, 0
	for i < m && j < n {
		switch {
		case a[i] == b[j]:
			ops = append(ops, Op{Equal, a[i]})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			ops = append(ops, Op{Delete, a[i]})
			i++
		default:
			ops = append(ops, Op{Insert, b[j]})
			j++
		}
	}
	for ; i < m; i++ {
		ops = append(ops, Op{Delete, a[i]})
	}
	for ; j < n; j++ {
		ops = append(ops, Op{Insert, b[j]})
	}
	return ops
}

func replaceAll(a, b []string) []Op {
	var ops []Op
	for _, t := range a {
		ops = append(ops, Op{Delete, t})
	}
	for _, t := range b {
		ops = append(ops, Op{Insert, t})
	}
	return ops
}

// merge joins adjacent ops of the same type. A lone whitespace Equal
// between two changes is folded into both sides so "[-a-] [-b-]" reads as
// "[-a b-]".
func merge(ops []Op) []Op {
	var out []Op
	for i := 0; i < len(ops); i++ {
		op := ops[i]
		if op.Type == Equal && strings.TrimSpace(op.Text) == "" && i > 0 && i < len(ops)-1 &&
			ops[i-1].Type != Equal && ops[i+1].Type != Equal {
			out = appendOp(out, Op{Delete, op.Text})
			out = appendOp(out, Op{Insert, op.Text})
			continue
		}
		out = appendOp(out, op)
	}
	return regroup(out)
}

func appendOp(ops []Op, op Op) []Op {
	if n := len(ops); n > 0 && ops[n-1].Type == op.Type {
		ops[n-1].Text += op.Text
		return ops
	}
	return append(ops, op)
}

// regroup orders each run of changes as all deletions then all insertions.
func regroup(ops []Op) []Op {
	var out []Op
	for i := 0; i < len(ops); {
		if ops[i].Type == Equal {
			out = append(out, ops[i])
			i++
			continue
		}
		var del, ins strings.Builder
		for ; i < len(ops) && ops[i].Type != Equal; i++ {
			if ops[i].Type == Delete {
				del.WriteString(ops[i].Text)
			} else {
				ins.WriteString(ops[i].Text)
			}
		}
		if del.Len() > 0 {
			out = append(out, Op{Delete, del.String()})
		}
		if ins.Len() > 0 {
			out = append(out, Op{Insert, ins.String()})
		}
	}
	return out
}

// =============================================================================
// FORMATTING
// =============================================================================

// Render writes equal text as is and passes changes through del and ins.
func (d *Diff) Render(del, ins func(string) string) string {
	var sb strings.Builder
	for _, op := range d.Ops {
		switch op.Type {
		case Equal:
			sb.WriteString(op.Text)
		case Delete:
			sb.WriteString(del(op.Text))
		case Insert:
			sb.WriteString(ins(op.Text))
		}
	}
	return sb.String()
}

// Plain renders the diff in git's word-diff plain format.
func (d *Diff) Plain() string {
	return d.Render(
		func(s string) string { return "[-" + s + "-]" },
		func(s string) string { return "{+" + s + "+}" },
	)
}

// Summary returns a short human-readable summary of the diff.
func (d *Diff) Summary() string {
	if !d.Changed() {
		return "no changes"
	}
	return fmt.Sprintf("+%d -%d", d.Stats.Insertions, d.Stats.Deletions)
}
