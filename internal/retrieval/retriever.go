// Package retrieval finds prior exchanges relevant to a new prompt.
// This is a cheap bag-of-words similarity heuristic, not semantic search:
// the exact tokenizer, the >1 shared-word threshold, and the newest-first
// cap of three are part of the contract so results stay reproducible.
package retrieval

import (
	"sort"
	"strings"
	"unicode"

	"parley/internal/logging"
	"parley/internal/types"
)

// MaxSnippets caps how many prior exchanges are injected as context.
const MaxSnippets = 3

// minSharedWords is the exclusive threshold: an exchange qualifies only when
// it shares strictly more than this many tokens with the prompt.
const minSharedWords = 1

// Tokenize lowercases text and returns the set of words longer than three
// bytes that are not purely numeric.
func Tokenize(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := make(map[string]bool, len(words))
	for _, w := range words {
		if len(w) <= 3 || isNumeric(w) {
			continue
		}
		set[w] = true
	}
	return set
}

func isNumeric(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Find scans sessions newest-first for user messages sharing more than one
// token with the prompt. Each hit yields the user text and, when a model
// reply immediately follows it, that reply. Scanning stops as soon as
// MaxSnippets are collected. An empty prompt token set or zero matches
// yields no context; that is not an error.
func Find(promptText string, sessions []types.Session) []types.ContextSnippet {
	prompt := Tokenize(promptText)
	if len(prompt) == 0 {
		return nil
	}

	// Reverse lexicographic id order is the recency proxy: ids are
	// monotonic tokens, so newest sessions come first.
	ordered := append([]types.Session(nil), sessions...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ID > ordered[j].ID
	})

	var snippets []types.ContextSnippet
	for _, sess := range ordered {
		for i := len(sess.Messages) - 1; i >= 0; i-- {
			msg := sess.Messages[i]
			if msg.Role != types.RoleUser {
				continue
			}
			if overlap(prompt, Tokenize(msg.Text())) <= minSharedWords {
				continue
			}

			snippet := types.ContextSnippet{SessionID: sess.ID, UserText: msg.Text()}
			if i+1 < len(sess.Messages) && sess.Messages[i+1].Role == types.RoleModel {
				snippet.ReplyText = sess.Messages[i+1].Text()
			}
			snippets = append(snippets, snippet)

			if len(snippets) >= MaxSnippets {
				logging.Retrieval("snippet cap reached after session %s", sess.ID)
				return snippets
			}
		}
	}

	logging.Retrieval("found %d snippets for %d prompt tokens", len(snippets), len(prompt))
	return snippets
}

func overlap(a, b map[string]bool) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}

// RenderBlock formats snippets as the verbatim block the context assembler
// appends to the directive. Empty input renders as the empty string.
func RenderBlock(snippets []types.ContextSnippet) string {
	if len(snippets) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant exchanges from earlier conversations:\n")
	for _, s := range snippets {
		b.WriteString("- User said: ")
		b.WriteString(s.UserText)
		b.WriteString("\n")
		if s.ReplyText != "" {
			b.WriteString("  You replied: ")
			b.WriteString(s.ReplyText)
			b.WriteString("\n")
		}
	}
	return b.String()
}
