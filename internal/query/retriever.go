package query

import (
	"context"
	"errors"
	"sort"

	"github.com/dotmd/dotmd/internal/embed"
	derrors "github.com/dotmd/dotmd/internal/errors"
	"github.com/dotmd/dotmd/internal/model"
	"github.com/dotmd/dotmd/internal/store"
)

// Candidate is one retriever's scored hit: a chunk ID and the raw score the
// retriever itself computed (cosine similarity, BM25 score, or the graph's
// accumulated hop score). Candidate lists never contain duplicate chunk IDs
// (spec §4.6).
type Candidate struct {
	ChunkID string
	Score   float64
}

// Retriever returns an ordered list of candidates for a query, without
// duplicates (spec §4.6: "(query, limit) -> ordered list of (chunk_id,
// engine_score)").
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// DenseRetriever encodes the query with the same embedding model used at
// index time and runs ANN search against the vector store (spec §4.6).
type DenseRetriever struct {
	Vectors  store.VectorStore
	Embedder embed.Embedder
}

var _ Retriever = (*DenseRetriever)(nil)

func (r *DenseRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Candidate, error) {
	vec, err := r.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, derrors.Wrap(derrors.CodeIndexWriteError, err)
	}

	hits, err := r.Vectors.Search(ctx, vec, limit)
	if err != nil {
		var mismatch store.ErrDimensionMismatch
		if errors.As(err, &mismatch) {
			return nil, derrors.ModelMismatch(mismatch.Error()).WithDetail("model", r.Embedder.ModelName())
		}
		return nil, err
	}

	out := make([]Candidate, len(hits))
	for i, h := range hits {
		out[i] = Candidate{ChunkID: h.ID, Score: float64(h.Score)}
	}
	return out, nil
}

// SparseRetriever tokenises the expanded query and scores it against the
// frozen BM25 index (spec §4.6). An empty query returns an empty result,
// not an error.
type SparseRetriever struct {
	Sparse store.BM25Index
}

var _ Retriever = (*SparseRetriever)(nil)

func (r *SparseRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if query == "" {
		return nil, nil
	}
	hits, err := r.Sparse.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, len(hits))
	for i, h := range hits {
		out[i] = Candidate{ChunkID: h.ChunkID, Score: h.Score}
	}
	return out, nil
}

// GraphRetriever is seeded by the union of the dense and sparse retrievers'
// top results (up to SeedBudget) and traverses the property graph up to
// MaxHops via the weighted edge kinds, summing edge_weight / hop^2 over the
// traversal hits that land on each section (one hit per edge followed; see
// GraphStore.Traverse for which paths that covers) and giving each chunk
// its section's score (spec §4.6). If there are no seeds, it returns empty
// without touching the graph store.
type GraphRetriever struct {
	Graph       store.GraphStore
	Metadata    store.MetadataStore
	SeedBudget  int
	MaxHops     int
	EdgeWeights map[model.EdgeKind]float64
	EdgeKinds   []model.EdgeKind
}

var _ Retriever = (*GraphRetriever)(nil)

// Retrieve ignores query/limit in favor of explicit seeding via
// RetrieveSeeded; it exists only to satisfy Retriever for pipelines that
// treat all three retrievers uniformly. The real entry point used by the
// query pipeline is RetrieveSeeded, since the graph retriever's seeds come
// from the other two retrievers' results, not from the raw query text.
func (r *GraphRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Candidate, error) {
	return nil, nil
}

// RetrieveSeeded runs the bounded-hop graph traversal from seedChunkIDs
// (the union of the dense and sparse retrievers' top hits) and returns the
// top limit chunks by accumulated score.
func (r *GraphRetriever) RetrieveSeeded(ctx context.Context, seedChunkIDs []string, limit int) ([]Candidate, error) {
	if len(seedChunkIDs) == 0 {
		return nil, nil
	}
	budget := r.SeedBudget
	if budget <= 0 {
		budget = 20
	}
	if len(seedChunkIDs) > budget {
		seedChunkIDs = seedChunkIDs[:budget]
	}

	seedNodes, err := r.sectionSeeds(ctx, seedChunkIDs)
	if err != nil {
		return nil, err
	}
	if len(seedNodes) == 0 {
		return nil, nil
	}

	hops := r.MaxHops
	if hops <= 0 {
		hops = 2
	}
	hits, err := r.Graph.Traverse(ctx, seedNodes, r.EdgeKinds, hops)
	if err != nil {
		return nil, err
	}

	sectionScore := make(map[string]float64)
	for _, hit := range hits {
		if hit.Node.Kind != model.NodeSection {
			continue
		}
		weight := r.EdgeWeights[hit.EdgeKind]
		sectionScore[hit.Node.ID] += weight / float64(hit.Hops*hit.Hops)
	}
	if len(sectionScore) == 0 {
		return nil, nil
	}

	sectionIDs := make([]string, 0, len(sectionScore))
	for id := range sectionScore {
		sectionIDs = append(sectionIDs, id)
	}
	chunksBySection, err := r.Graph.SectionChunks(ctx, sectionIDs)
	if err != nil {
		return nil, err
	}

	chunkScore := make(map[string]float64)
	for sectionID, score := range sectionScore {
		for _, chunkID := range chunksBySection[sectionID] {
			if score > chunkScore[chunkID] {
				chunkScore[chunkID] = score
			}
		}
	}

	candidates := make([]Candidate, 0, len(chunkScore))
	for id, score := range chunkScore {
		candidates = append(candidates, Candidate{ChunkID: id, Score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// sectionSeeds maps seed chunk IDs to the graph NodeRefs of the sections
// that own them (chunks are not graph nodes; sections are), deduplicating.
func (r *GraphRetriever) sectionSeeds(ctx context.Context, chunkIDs []string) ([]model.NodeRef, error) {
	chunks, err := r.Metadata.GetChunks(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var seeds []model.NodeRef
	for _, c := range chunks {
		sectionID := model.SectionID(c.FilePath, c.HeadingPath)
		if seen[sectionID] {
			continue
		}
		seen[sectionID] = true
		seeds = append(seeds, model.NodeRef{Kind: model.NodeSection, ID: sectionID})
	}
	return seeds, nil
}

// DefaultEdgeKinds is the set of edge kinds the graph retriever traverses
// (spec §4.6): MENTIONS, CO_OCCURS, LINKS_TO, HAS_TAG, PARENT_OF. HAS_SECTION
// is also included even though the spec's list names only the first five:
// LINKS_TO always lands on the target's File node (the structural extractor
// resolves a wikilink to a file, not one of its sections), so without a
// second hop over HAS_SECTION a linked file's sections would never be
// reachable at all — only its File node, which RetrieveSeeded never scores
// since it only counts NodeSection hits (spec §8 scenario C).
var DefaultEdgeKinds = []model.EdgeKind{
	model.EdgeMentions,
	model.EdgeCoOccurs,
	model.EdgeLinksTo,
	model.EdgeHasTag,
	model.EdgeParentOf,
	model.EdgeHasSection,
}

// EdgeWeightsFromConfig converts the config's string-keyed edge weight map
// into the EdgeKind-keyed map GraphRetriever expects.
func EdgeWeightsFromConfig(cfg map[string]float64) map[model.EdgeKind]float64 {
	out := make(map[model.EdgeKind]float64, len(cfg))
	for k, v := range cfg {
		out[model.EdgeKind(k)] = v
	}
	return out
}
