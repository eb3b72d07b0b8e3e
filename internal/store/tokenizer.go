package store

import (
	"regexp"
	"strings"
)

// wordPattern matches runs of letters/digits, the token boundary for prose
// Markdown text (no camelCase/snake_case splitting needed here, unlike a
// code-search tokenizer).
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// tokenizeProse lowercases and splits text into words, dropping anything
// shorter than minLen and any stop word in stopWords.
func tokenizeProse(text string, minLen int, stopWords map[string]struct{}) []string {
	words := wordPattern.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if len(lower) < minLen {
			continue
		}
		if _, stop := stopWords[lower]; stop {
			continue
		}
		tokens = append(tokens, lower)
	}
	return tokens
}

func buildStopWordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
