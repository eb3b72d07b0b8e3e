package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotmd/dotmd/internal/model"
	"github.com/dotmd/dotmd/internal/store"
)

// fakeEmbedder returns a fixed vector regardless of text, so dense-retriever
// tests can exercise real HNSW search without a model dependency.
type fakeEmbedder struct {
	vec []float32
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) { return f.vec, nil }
func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int                  { return len(f.vec) }
func (f *fakeEmbedder) ModelName() string                { return "fake-embedder" }
func (f *fakeEmbedder) Available(_ context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                     { return nil }
func (f *fakeEmbedder) SetBatchIndex(_ int)               {}
func (f *fakeEmbedder) SetFinalBatch(_ bool)               {}

func TestDenseRetriever_ReturnsNearestNeighbors(t *testing.T) {
	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	defer vectors.Close()

	require.NoError(t, vectors.Add(context.Background(),
		[]string{"c1", "c2"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))

	r := &DenseRetriever{Vectors: vectors, Embedder: &fakeEmbedder{vec: []float32{1, 0, 0, 0}}}
	candidates, err := r.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.Equal(t, "c1", candidates[0].ChunkID)
}

func TestDenseRetriever_DimensionMismatch_ReturnsModelMismatch(t *testing.T) {
	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	defer vectors.Close()
	require.NoError(t, vectors.Add(context.Background(), []string{"c1"}, [][]float32{{1, 0, 0, 0}}))

	r := &DenseRetriever{Vectors: vectors, Embedder: &fakeEmbedder{vec: []float32{1, 0}}}
	_, err = r.Retrieve(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_MODEL_MISMATCH")
}

func TestSparseRetriever_EmptyQuery_ReturnsEmpty(t *testing.T) {
	idx, err := store.NewBM25Index("", store.DefaultBM25Config())
	require.NoError(t, err)
	defer idx.Close()

	r := &SparseRetriever{Sparse: idx}
	candidates, err := r.Retrieve(context.Background(), "", 5)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSparseRetriever_MatchesIndexedTerms(t *testing.T) {
	idx, err := store.NewBM25Index("", store.DefaultBM25Config())
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Index(context.Background(), []store.Document{
		{ID: "c1", Text: "the storage layer uses sqlite for metadata"},
		{ID: "c2", Text: "unrelated content about gardening"},
	}))

	r := &SparseRetriever{Sparse: idx}
	candidates, err := r.Retrieve(context.Background(), "storage sqlite", 5)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.Equal(t, "c1", candidates[0].ChunkID)
}

func TestGraphRetriever_EmptySeeds_ReturnsEmpty(t *testing.T) {
	graph, err := store.NewGraphStore(":memory:")
	require.NoError(t, err)
	defer graph.Close()

	r := &GraphRetriever{Graph: graph, EdgeKinds: DefaultEdgeKinds, EdgeWeights: EdgeWeightsFromConfig(map[string]float64{"MENTIONS": 1.0})}
	candidates, err := r.RetrieveSeeded(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestGraphRetriever_TraversesAndResolvesToChunks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	graph, err := store.NewGraphStore(filepath.Join(dir, "graph.db"))
	require.NoError(t, err)
	defer graph.Close()

	metadata, err := store.NewMetadataStore(filepath.Join(dir, "metadata.db"))
	require.NoError(t, err)
	defer metadata.Close()

	file := &model.File{Path: "/vault/a.md", Title: "A", Checksum: "c1"}
	require.NoError(t, metadata.SaveFile(ctx, file))

	seedChunk := &model.Chunk{ID: "seed-chunk", FilePath: file.Path, HeadingPath: []string{"Intro"}, Text: "intro text"}
	targetChunk := &model.Chunk{ID: "target-chunk", FilePath: file.Path, HeadingPath: []string{"Storage"}, Text: "storage text"}
	require.NoError(t, metadata.SaveChunks(ctx, []*model.Chunk{seedChunk, targetChunk}))

	seedSectionID := model.SectionID(file.Path, seedChunk.HeadingPath)
	targetSectionID := model.SectionID(file.Path, targetChunk.HeadingPath)

	require.NoError(t, graph.UpsertSection(ctx, &model.Section{ID: seedSectionID, FilePath: file.Path, Level: 1, Heading: "Intro"}))
	require.NoError(t, graph.UpsertSection(ctx, &model.Section{ID: targetSectionID, FilePath: file.Path, Level: 1, Heading: "Storage"}))
	require.NoError(t, graph.LinkSectionChunks(ctx, seedSectionID, []string{seedChunk.ID}))
	require.NoError(t, graph.LinkSectionChunks(ctx, targetSectionID, []string{targetChunk.ID}))

	require.NoError(t, graph.UpsertEdges(ctx, []model.Edge{{
		FromKind: model.NodeSection, FromID: seedSectionID,
		ToKind:   model.NodeSection, ToID: targetSectionID,
		Kind:     model.EdgeLinksTo,
	}}))

	r := &GraphRetriever{
		Graph:       graph,
		Metadata:    metadata,
		SeedBudget:  20,
		MaxHops:     2,
		EdgeKinds:   DefaultEdgeKinds,
		EdgeWeights: EdgeWeightsFromConfig(map[string]float64{"LINKS_TO": 0.6}),
	}

	candidates, err := r.RetrieveSeeded(ctx, []string{seedChunk.ID}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.Equal(t, "target-chunk", candidates[0].ChunkID)
}
