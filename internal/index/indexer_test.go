package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotmd/dotmd/internal/chunk"
	"github.com/dotmd/dotmd/internal/embed"
	"github.com/dotmd/dotmd/internal/extract"
	"github.com/dotmd/dotmd/internal/model"
	"github.com/dotmd/dotmd/internal/reader"
	"github.com/dotmd/dotmd/internal/store"
)

// newModelFile builds the model.File a Reader would have produced for the
// given path/content, so indexer tests don't need a real filesystem walk.
func newModelFile(path, content string) *model.File {
	b := []byte(content)
	return &model.File{
		Path:     path,
		Title:    reader.DeriveTitle(b, path),
		Checksum: reader.Checksum(b),
		Size:     int64(len(b)),
	}
}

type testStores struct {
	metadata store.MetadataStore
	vectors  store.VectorStore
	sparse   store.BM25Index
	graph    store.GraphStore
}

func newTestStores(t *testing.T) testStores {
	t.Helper()
	dir := t.TempDir()

	metadata, err := store.NewMetadataStore(filepath.Join(dir, "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { metadata.Close() })

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embed.StaticDimensions))
	require.NoError(t, err)
	t.Cleanup(func() { vectors.Close() })

	sparse, err := store.NewBM25Index("", store.DefaultBM25Config())
	require.NoError(t, err)
	t.Cleanup(func() { sparse.Close() })

	graph, err := store.NewGraphStore(filepath.Join(dir, "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { graph.Close() })

	return testStores{metadata: metadata, vectors: vectors, sparse: sparse, graph: graph}
}

func newTestIndexer(t *testing.T) (*Indexer, testStores) {
	t.Helper()
	stores := newTestStores(t)
	cfg := Config{
		Metadata:       stores.metadata,
		Vectors:        stores.vectors,
		Sparse:         stores.sparse,
		Graph:          stores.graph,
		Embedder:       embed.NewStaticEmbedder(),
		Chunker:        chunk.NewMarkdownChunker(),
		Structural:     extract.NewStructuralExtractor(nil),
		EmbedBatchSize: 8,
	}
	return New(cfg), stores
}

func TestIndexer_IndexFileWritesAllFourStores(t *testing.T) {
	ix, stores := newTestIndexer(t)
	ctx := context.Background()

	content := "# Intro\n\nHello world, this mentions [[Other Doc]] and #topic.\n"
	file := newModelFile("/vault/intro.md", content)
	res := ix.IndexFile(ctx, file, []byte(content))
	require.NoError(t, res.Err)
	assert.Equal(t, StageIndexed, res.Stage)
	assert.Equal(t, 1, res.ChunkCount)

	files, chunks, err := stores.metadata.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	assert.Equal(t, 1, chunks)

	assert.Equal(t, 1, stores.vectors.Count())

	results, err := stores.sparse.Search(ctx, "hello world", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	_, edges, err := stores.graph.Stats(ctx)
	require.NoError(t, err)
	assert.Greater(t, edges, 0)
}

func TestIndexer_ReindexUnchangedChecksumIsNoOp(t *testing.T) {
	ix, stores := newTestIndexer(t)
	ctx := context.Background()

	content := "# A\n\nsome body text"
	file := newModelFile("/vault/a.md", content)

	res1 := ix.IndexFile(ctx, file, []byte(content))
	require.NoError(t, res1.Err)

	res2 := ix.IndexFile(ctx, file, []byte(content))
	require.NoError(t, res2.Err)
	assert.Equal(t, StageIndexed, res2.Stage)

	_, chunks, err := stores.metadata.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, chunks, "re-indexing an unchanged file should not duplicate chunks")
}

func TestIndexer_ReindexChangedChecksumReplacesChunks(t *testing.T) {
	ix, stores := newTestIndexer(t)
	ctx := context.Background()

	v1 := "# A\n\nfirst version"
	file1 := newModelFile("/vault/a.md", v1)
	res1 := ix.IndexFile(ctx, file1, []byte(v1))
	require.NoError(t, res1.Err)

	v2 := "# A\n\nsecond version, totally different"
	file2 := newModelFile("/vault/a.md", v2)
	res2 := ix.IndexFile(ctx, file2, []byte(v2))
	require.NoError(t, res2.Err)

	_, chunks, err := stores.metadata.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, chunks)

	got, err := stores.metadata.GetChunksByFile(ctx, "/vault/a.md")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Text, "second version")
}

func TestIndexer_RemoveFileClearsAllStores(t *testing.T) {
	ix, stores := newTestIndexer(t)
	ctx := context.Background()

	content := "# A\n\nbody text here"
	file := newModelFile("/vault/a.md", content)
	res := ix.IndexFile(ctx, file, []byte(content))
	require.NoError(t, res.Err)

	require.NoError(t, ix.RemoveFile(ctx, "/vault/a.md"))

	files, chunks, err := stores.metadata.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, files)
	assert.Equal(t, 0, chunks)
	assert.Equal(t, 0, stores.vectors.Count())
}

func TestIndexer_HeadinglessFileProducesSingleRootChunk(t *testing.T) {
	ix, _ := newTestIndexer(t)
	ctx := context.Background()

	content := "just a paragraph, no heading at all"
	file := newModelFile("/vault/plain.md", content)
	res := ix.IndexFile(ctx, file, []byte(content))
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.ChunkCount)
}
