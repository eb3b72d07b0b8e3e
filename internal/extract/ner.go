package extract

import (
	"context"

	"github.com/dotmd/dotmd/internal/model"
)

// NERExtractor emits MENTIONS edges from a chunk's section to each distinct
// entity a backend detects, and CO_OCCURS edges between every pair of
// entities found in the same chunk (spec §4.3).
type NERExtractor struct {
	backend    NERBackend
	types      []string
	scoreFloor float64
}

// NewNERExtractor builds an extractor over the given backend. Detections
// scoring below scoreFloor are discarded.
func NewNERExtractor(backend NERBackend, types []string, scoreFloor float64) *NERExtractor {
	return &NERExtractor{backend: backend, types: types, scoreFloor: scoreFloor}
}

// Extract implements Extractor.
func (e *NERExtractor) Extract(ctx context.Context, chunk *model.Chunk, file *model.File) (Result, error) {
	detections, err := e.backend.Detect(ctx, chunk.Text, e.types)
	if err != nil {
		return Result{}, err
	}

	sectionID := model.SectionID(chunk.FilePath, chunk.HeadingPath)

	var res Result
	seen := make(map[string]model.Entity)
	var ids []string
	for _, d := range detections {
		if d.Score < e.scoreFloor {
			continue
		}
		id := model.EntityID(d.Surface, d.Type)
		if _, ok := seen[id]; !ok {
			ent := model.Entity{ID: id, Name: d.Surface, Type: d.Type}
			seen[id] = ent
			res.Entities = append(res.Entities, ent)
			res.Edges = append(res.Edges, model.Edge{
				Kind: model.EdgeMentions, FromKind: model.NodeSection, FromID: sectionID,
				ToKind: model.NodeEntity, ToID: id,
			})
			ids = append(ids, id)
		}
	}

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			res.Edges = append(res.Edges, model.Edge{
				Kind: model.EdgeCoOccurs, FromKind: model.NodeEntity, FromID: ids[i],
				ToKind: model.NodeEntity, ToID: ids[j],
			})
		}
	}

	return res, nil
}
