package query

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dotmd/dotmd/internal/model"
	"github.com/dotmd/dotmd/internal/store"
)

// Mode selects which retrievers a query runs (spec §4.6/§5): hybrid runs
// all three and fuses them; semantic and bm25 run only that retriever;
// graph also runs dense and sparse to seed its traversal but fuses only the
// graph list. In the single-engine modes RRF degenerates to a rename of
// that one retriever's scores.
type Mode string

const (
	ModeHybrid   Mode = "hybrid"
	ModeSemantic Mode = "semantic"
	ModeBM25     Mode = "bm25"
	ModeGraph    Mode = "graph"
)

// Options configures one Pipeline.Search call (spec §6).
type Options struct {
	Mode   Mode
	Limit  int // fused-result limit before reranking, defaults to DefaultFusedLimit
	TopK   int // final result count; Engine.Search fills an unset value from config.RerankConfig.DefaultTopK, Pipeline.Search uses 10
	Rerank bool
	Expand *bool // query expansion toggle; nil defaults to enabled
}

// Pipeline wires the query expander, the three retrievers, the fuser, and
// the reranker into the single hybrid-search operation: Expand -> {Dense,
// Sparse} (parallel) -> Graph (seeded from their union) -> Fuse -> Rerank
// (optional) -> top K.
//
// Grounded on the teacher's Engine.parallelSearch (internal/search/
// engine.go) for the errgroup-based concurrent dispatch, generalized from
// two retrievers to three and from the teacher's engine-owns-everything
// struct to an explicit Pipeline over the store/retriever interfaces.
type Pipeline struct {
	Metadata store.MetadataStore
	Expander *Expander
	Dense    *DenseRetriever
	Sparse   *SparseRetriever
	Graph    *GraphRetriever
	Fuser    *Fuser
	Reranker Reranker
}

// Search runs the full pipeline for query and returns the final reranked
// (or, if opts.Rerank is false, fused-order) results.
func (p *Pipeline) Search(ctx context.Context, query string, opts Options) ([]RerankedResult, error) {
	if opts.Mode == "" {
		opts.Mode = ModeHybrid
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultFusedLimit
	}

	expanded := query
	if p.Expander != nil && (opts.Expand == nil || *opts.Expand) {
		expanded = p.Expander.Expand(query)
	}

	dense, sparse, graph, err := p.retrieve(ctx, query, expanded, opts.Mode, limit)
	if err != nil {
		return nil, err
	}

	fuser := p.Fuser
	if fuser == nil {
		fuser = NewFuser()
	}
	fused := fuser.Fuse(dense, sparse, graph)

	candidates, err := p.hydrate(ctx, fused)
	if err != nil {
		return nil, err
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	if !opts.Rerank || p.Reranker == nil {
		noop := &NoOpReranker{}
		return noop.Rerank(ctx, query, candidates, topK)
	}
	return p.Reranker.Rerank(ctx, query, candidates, topK)
}

// retrieve dispatches the retrievers the requested mode needs, running
// dense and sparse concurrently (spec §5) and seeding the graph retriever
// from their union once both complete.
func (p *Pipeline) retrieve(ctx context.Context, rawQuery, expandedQuery string, mode Mode, limit int) (dense, sparse, graph []Candidate, err error) {
	g, gctx := errgroup.WithContext(ctx)

	// Graph mode still needs dense+sparse candidates to seed its traversal
	// (spec §4.6: "seeded by the top results of the dense and sparse
	// retrievers") even though it discards their scores from the final
	// fusion below — only the fuser's mode-awareness, not retrieval itself,
	// degenerates to a single engine.
	if mode == ModeHybrid || mode == ModeSemantic || mode == ModeGraph {
		g.Go(func() error {
			var retrieveErr error
			dense, retrieveErr = p.Dense.Retrieve(gctx, rawQuery, limit)
			if retrieveErr != nil {
				slog.Warn("dense retrieval failed", slog.String("err", retrieveErr.Error()))
				return retrieveErr
			}
			return nil
		})
	}

	if mode == ModeHybrid || mode == ModeBM25 || mode == ModeGraph {
		g.Go(func() error {
			var retrieveErr error
			sparse, retrieveErr = p.Sparse.Retrieve(gctx, expandedQuery, limit)
			if retrieveErr != nil {
				slog.Warn("sparse retrieval failed", slog.String("err", retrieveErr.Error()))
				return retrieveErr
			}
			return nil
		})
	}

	if waitErr := g.Wait(); waitErr != nil {
		return nil, nil, nil, waitErr
	}

	if mode == ModeHybrid || mode == ModeGraph {
		seeds := seedChunkIDs(dense, sparse, p.Graph.SeedBudget)
		graph, err = p.Graph.RetrieveSeeded(ctx, seeds, limit)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	if mode == ModeGraph {
		// Seeding is done; the fuser only ranks by the retriever the mode
		// names, so dense/sparse candidates don't leak into the graph-mode
		// result ordering.
		dense, sparse = nil, nil
	}

	return dense, sparse, graph, nil
}

// seedChunkIDs unions dense and sparse candidates in score order, capped
// at budget, for graph-retriever seeding (spec §4.6: "seed budget,
// default 20").
func seedChunkIDs(dense, sparse []Candidate, budget int) []string {
	if budget <= 0 {
		budget = 20
	}
	seen := make(map[string]bool)
	var seeds []string
	add := func(cands []Candidate) {
		for _, c := range cands {
			if len(seeds) >= budget {
				return
			}
			if seen[c.ChunkID] {
				continue
			}
			seen[c.ChunkID] = true
			seeds = append(seeds, c.ChunkID)
		}
	}
	add(dense)
	add(sparse)
	return seeds
}

// hydrate loads chunk text/location for every fused result so the
// reranker has a passage to score and a locator for the final record.
func (p *Pipeline) hydrate(ctx context.Context, fused []*FusedResult) ([]RerankCandidate, error) {
	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
	}
	chunks, err := p.Metadata.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	candidates := make([]RerankCandidate, 0, len(fused))
	for _, f := range fused {
		c, ok := byID[f.ChunkID]
		if !ok {
			continue
		}
		candidates = append(candidates, RerankCandidate{
			ChunkID:     c.ID,
			FilePath:    c.FilePath,
			HeadingPath: c.HeadingPath,
			Text:        c.Text,
			Fused:       f,
		})
	}
	return candidates, nil
}
