// Package text normalizes record text into index keys.
//
// Tokenize lowercases text and splits it on whitespace runs. Fragments
// decomposes a word into all of its suffixes so that "word contains S" can be
// answered as "some suffix of word starts with S" using only prefix scans.
package text

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/sift/core"
)

// Tokenize lowercases s and splits it on one or more whitespace characters.
// Empty tokens are never returned.
func Tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// ExtractWords returns the sorted, distinct tokens of all field values of r.
func ExtractWords(r *core.Record) []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, f := range r.Fields {
		for _, tok := range Tokenize(f.Value) {
			seen[tok] = struct{}{}
		}
	}
	words := make([]string, 0, len(seen))
	for w := range seen {
		words = append(words, w)
	}
	slices.Sort(words)
	return words
}

// Fragments returns every suffix of word, longest first. Offsets are rune
// boundaries, so multi-byte characters are never split.
func Fragments(word string) []string {
	if word == "" {
		return nil
	}
	out := make([]string, 0, utf8.RuneCountInString(word))
	for i := range word {
		out = append(out, word[i:])
	}
	return out
}

// Normalize lowercases and trims a query term.
func Normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// Length reports the number of characters in s.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// HasWordWithPrefix reports whether any whitespace-delimited token of the
// lowercased text starts with prefix. prefix must already be lowercase.
func HasWordWithPrefix(raw, prefix string) bool {
	for _, tok := range Tokenize(raw) {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}
	return false
}

// ContainsFold reports whether needle occurs in haystack, ignoring case.
// needle must already be lowercase.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}
