// Package extract implements the two independently enabled extraction
// layers of spec §4.3: a structural extractor (always on) and a pluggable
// NER extractor (optional), each consuming a chunk and emitting entities,
// tags, and property-graph edges.
package extract

import (
	"context"

	"github.com/dotmd/dotmd/internal/model"
)

// Result holds everything one extractor pass contributed for a chunk.
type Result struct {
	Entities []model.Entity
	Tags     []model.Tag
	Edges    []model.Edge
}

// TitleResolver resolves a wikilink/markdown-link target against known
// file titles, case-insensitive exact match (spec §4.3).
type TitleResolver interface {
	ResolveByTitle(title string) (path string, ok bool)
}

// Extractor consumes one chunk and emits the entities/tags/edges it finds.
type Extractor interface {
	Extract(ctx context.Context, chunk *model.Chunk, file *model.File) (Result, error)
}

// Detection is one NER hit: a surface form, its type, its byte span within
// the chunk text, and the backend's confidence score.
type Detection struct {
	Surface string
	Type    model.EntityType
	Start   int
	End     int
	Score   float64
}

// NERBackend is the pluggable zero-shot NER contract (spec §4.3): chunk
// text plus the configured entity type set in, detections out. Swapping
// the backend never changes the extractor's edge-construction logic.
type NERBackend interface {
	Detect(ctx context.Context, text string, types []string) ([]Detection, error)
}
