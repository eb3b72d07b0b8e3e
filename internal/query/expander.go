package query

import (
	"strings"
)

// Expander expands a raw query string into additional context terms before
// it reaches the retrievers (spec §4.5): acronym expansion and
// heading-structure expansion. Expansion is a pure function over its inputs;
// it never consults the vector or graph stores, only the (pre-built)
// acronym dictionary and heading index.
//
// Grounded on the teacher's QueryExpander (struct + Expand method +
// dictionary map), generalized from code-vocabulary synonyms to acronym
// expansion and heading-context lookup.
type Expander struct {
	acronyms map[string][]string
	headings *HeadingIndex
}

// NewExpander creates an Expander with the given acronym dictionary (nil
// uses DefaultAcronyms) and an optional heading index (nil disables
// heading-structure expansion).
func NewExpander(acronyms map[string][]string, headings *HeadingIndex) *Expander {
	if acronyms == nil {
		acronyms = DefaultAcronyms
	}
	return &Expander{acronyms: acronyms, headings: headings}
}

// Expand returns query with acronym expansions and heading-structure
// context terms appended. The original tokens are always kept; expansion
// only adds, it never substitutes (spec §4.5: "both the acronym and its
// expansion are appended, not substituted").
func (e *Expander) Expand(query string) string {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return query
	}

	seen := make(map[string]bool, len(tokens))
	terms := make([]string, 0, len(tokens))
	addTerm := func(t string) {
		key := strings.ToLower(t)
		if seen[key] {
			return
		}
		seen[key] = true
		terms = append(terms, t)
	}

	for _, tok := range tokens {
		addTerm(tok)
	}

	for _, tok := range tokens {
		for _, expansion := range e.acronymsFor(tok) {
			addTerm(expansion)
		}
		if e.headings != nil {
			if ancestors, ok := e.headings.Ancestors(tok); ok {
				for _, a := range ancestors {
					addTerm(a)
				}
			}
		}
	}

	return strings.Join(terms, " ")
}

// acronymsFor returns the dictionary expansions for tok: exact match on the
// uppercased token first, then (for tokens of length >= 3) a fuzzy match
// against dictionary keys within edit distance 1 (spec §4.5).
func (e *Expander) acronymsFor(tok string) []string {
	upper := strings.ToUpper(tok)
	if exp, ok := e.acronyms[upper]; ok {
		return exp
	}
	if len(upper) < 3 {
		return nil
	}
	for key, exp := range e.acronyms {
		if len(key) < 3 {
			continue
		}
		if levenshtein(upper, key) <= 1 {
			return exp
		}
	}
	return nil
}

// tokenize splits a query on whitespace and punctuation, keeping the
// original casing; acronymsFor upper-cases each token before lookup, so
// acronym matching is case-insensitive.
func tokenize(query string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range query {
		if isWordRune(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == ':'
}

// levenshtein computes the edit distance between a and b, returning the
// length difference early when the lengths differ by more than 1, since
// acronymsFor only needs to know "<=1 or not".
func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if abs(la-lb) > 1 {
		return abs(la - lb)
	}

	prev := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr := make([]int, lb+1)
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, min(prev[j]+1, prev[j-1]+cost))
		}
		prev = curr
	}
	return prev[lb]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
