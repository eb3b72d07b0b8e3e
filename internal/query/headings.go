package query

import (
	"context"
	"strings"

	"github.com/dotmd/dotmd/internal/store"
)

// HeadingIndex resolves a heading title (case-insensitive) to the titles of
// its ancestor headings, so the Expander can contribute heading-structure
// context terms (spec §4.5). Built from the metadata store by
// NewHeadingIndex; the engine builds a new one after each index run.
type HeadingIndex struct {
	// ancestorsByTitle maps a lowercased heading title to the headings
	// above it in the first chunk whose heading path contains that title.
	ancestorsByTitle map[string][]string
}

// NewHeadingIndex builds an index from every chunk's heading path in
// metadata. Cheap relative to indexing itself: one pass over chunk rows,
// no text processing.
func NewHeadingIndex(ctx context.Context, metadata store.MetadataStore) (*HeadingIndex, error) {
	hi := &HeadingIndex{ancestorsByTitle: make(map[string][]string)}

	files, err := metadata.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		chunks, err := metadata.GetChunksByFile(ctx, f.Path)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			for i, heading := range c.HeadingPath {
				key := strings.ToLower(heading)
				if _, seen := hi.ancestorsByTitle[key]; seen {
					continue
				}
				hi.ancestorsByTitle[key] = append([]string(nil), c.HeadingPath[:i]...)
			}
		}
	}
	return hi, nil
}

// Ancestors returns the ancestor heading titles for the given heading title,
// case-insensitive, and whether any heading with that title was found.
func (hi *HeadingIndex) Ancestors(title string) ([]string, bool) {
	if hi == nil {
		return nil, false
	}
	ancestors, ok := hi.ancestorsByTitle[strings.ToLower(title)]
	return ancestors, ok
}
