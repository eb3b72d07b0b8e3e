package extract

import (
	"strings"
	"sync"
)

// TitleIndex is an in-memory TitleResolver over a corpus's known file
// titles, seeded from the metadata store ahead of each indexing batch and
// kept live by Register as that batch discovers new or renamed files, so a
// wikilink to a file indexed earlier in the same batch still resolves
// (spec §4.3, §8 scenario C).
type TitleIndex struct {
	mu      sync.RWMutex
	byTitle map[string]string // lower(title) -> file path
}

// NewTitleIndex builds a resolver from path->title pairs.
func NewTitleIndex(titles map[string]string) *TitleIndex {
	idx := &TitleIndex{byTitle: make(map[string]string, len(titles))}
	for path, title := range titles {
		idx.byTitle[strings.ToLower(title)] = path
	}
	return idx
}

// ResolveByTitle implements TitleResolver: case-insensitive exact match.
func (t *TitleIndex) ResolveByTitle(title string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	path, ok := t.byTitle[strings.ToLower(strings.TrimSpace(title))]
	return path, ok
}

// Register records (or updates) a file's title, making it resolvable by
// subsequent ResolveByTitle calls. Safe for concurrent use.
func (t *TitleIndex) Register(path, title string) {
	if title == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byTitle[strings.ToLower(title)] = path
}
