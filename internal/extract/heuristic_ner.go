package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/dotmd/dotmd/internal/model"
)

// properNounRun matches a run of two or more consecutive Title-Case words,
// the simplest signal of a named entity available without a model.
var properNounRun = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*(?:\s+[A-Z][a-zA-Z0-9]*)+\b`)

// singleWordToken matches one Title-Case word, the weaker signal used for
// single-token person names ("Alice", "Bob") that a multi-word run can
// never catch (spec §8 scenario D). On its own this pattern matches every
// ordinary capitalized word, sentence-initial or not — prose about a
// person commonly opens a sentence with their name — so Detect only
// excludes a fixed stoplist of common English words and whatever a
// multi-word run or technology hint already covered, not position.
var singleWordToken = regexp.MustCompile(`\b[A-Z][a-z]+\b`)

// technologyHints are lower-cased single words that skew "technology"
// rather than "concept" when they appear standalone.
var technologyHints = map[string]bool{
	"api": true, "sdk": true, "cli": true, "docker": true, "kubernetes": true,
	"postgres": true, "redis": true, "grpc": true, "http": true, "json": true,
	"yaml": true, "go": true, "python": true, "rust": true, "javascript": true,
}

// commonCapitalizedWords are frequent sentence-initial English words that
// would otherwise look like single-word proper nouns.
var commonCapitalizedWords = map[string]bool{
	"the": true, "this": true, "that": true, "these": true, "those": true,
	"a": true, "an": true, "it": true, "he": true, "she": true, "they": true,
	"we": true, "you": true, "there": true, "here": true, "if": true,
	"when": true, "after": true, "before": true, "then": true, "so": true,
	"but": true, "and": true, "or": true, "because": true, "what": true,
	"who": true, "how": true, "why": true, "also": true, "however": true,
}

// HeuristicNERBackend is the default NERBackend: deterministic, offline,
// no model download or network call, in the same spirit as the teacher's
// StaticEmbedder (internal/embed/static.go). It is intentionally coarse;
// a real zero-shot model can be plugged in behind the same NERBackend
// interface without touching NERExtractor.
type HeuristicNERBackend struct{}

// NewHeuristicNERBackend returns the stdlib-only default backend.
func NewHeuristicNERBackend() *HeuristicNERBackend {
	return &HeuristicNERBackend{}
}

// Detect implements NERBackend.
func (b *HeuristicNERBackend) Detect(ctx context.Context, text string, types []string) ([]Detection, error) {
	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	var detections []Detection
	multiWordSpans := properNounRun.FindAllStringIndex(text, -1)
	for _, loc := range multiWordSpans {
		surface := text[loc[0]:loc[1]]
		etype := classify(surface)
		if len(wanted) > 0 && !wanted[string(etype)] {
			continue
		}
		detections = append(detections, Detection{
			Surface: surface,
			Type:    etype,
			Start:   loc[0],
			End:     loc[1],
			Score:   0.5,
		})
	}

	if len(wanted) == 0 || wanted[string(model.EntityPerson)] {
		for _, m := range singleWordToken.FindAllStringIndex(text, -1) {
			if withinAnySpan(m[0], m[1], multiWordSpans) {
				continue // already covered by a multi-word run
			}
			surface := text[m[0]:m[1]]
			lower := strings.ToLower(surface)
			if commonCapitalizedWords[lower] || technologyHints[lower] {
				continue
			}
			detections = append(detections, Detection{
				Surface: surface,
				Type:    model.EntityPerson,
				Start:   m[0],
				End:     m[1],
				Score:   0.5,
			})
		}
	}

	for _, m := range singleWordHints.FindAllStringIndex(text, -1) {
		surface := text[m[0]:m[1]]
		if len(wanted) > 0 && !wanted["technology"] {
			continue
		}
		detections = append(detections, Detection{
			Surface: surface,
			Type:    model.EntityTechnology,
			Start:   m[0],
			End:     m[1],
			Score:   0.6,
		})
	}

	return detections, nil
}

var singleWordHints = regexp.MustCompile(`(?i)\b(api|sdk|cli|docker|kubernetes|postgres|redis|grpc)\b`)

// withinAnySpan reports whether [start, end) falls inside one of spans.
func withinAnySpan(start, end int, spans [][]int) bool {
	for _, s := range spans {
		if start >= s[0] && end <= s[1] {
			return true
		}
	}
	return false
}

// classify assigns a coarse entity type to a multi-word Title-Case run.
// This is a heuristic, not a trained classifier: anything capitalized and
// ending in a common organizational suffix is "organization", anything
// matching a known technology hint word is "technology", everything else
// defaults to "concept".
func classify(surface string) model.EntityType {
	lower := strings.ToLower(surface)
	for word := range technologyHints {
		if strings.Contains(lower, word) {
			return model.EntityTechnology
		}
	}
	orgSuffixes := []string{" inc", " corp", " llc", " ltd", " foundation", " labs"}
	for _, s := range orgSuffixes {
		if strings.HasSuffix(lower, s) {
			return model.EntityOrganization
		}
	}
	return model.EntityConcept
}
