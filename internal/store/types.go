// Package store provides the four persistence layers of the hybrid
// retrieval core (spec §3, §6): a relational metadata store, a sparse
// (BM25) index, a dense vector (ANN) store, and a property-graph store.
// Chunk IDs are referentially identical across all four.
package store

import (
	"context"
	"fmt"

	"github.com/dotmd/dotmd/internal/model"
)

// MetadataStore persists the relational `chunks`/`files` tables of spec §6:
// `chunks(id PK, file_path, ordinal, heading_path, text, start, end, tokens)`,
// `files(path PK, title, checksum, size, mtime, indexed_at)`.
type MetadataStore interface {
	SaveFile(ctx context.Context, file *model.File) error
	GetFile(ctx context.Context, path string) (*model.File, error)
	DeleteFile(ctx context.Context, path string) error // cascades to chunks
	ListFiles(ctx context.Context) ([]*model.File, error)

	SaveChunks(ctx context.Context, chunks []*model.Chunk) error
	GetChunk(ctx context.Context, id string) (*model.Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*model.Chunk, error)
	GetChunksByFile(ctx context.Context, filePath string) ([]*model.Chunk, error)
	DeleteChunksByFile(ctx context.Context, filePath string) error

	Stats(ctx context.Context) (files, chunks int, err error)
	Close() error
}

// Document is a unit of text to index in the sparse retriever, keyed by
// chunk ID so all four stores agree on identity.
type Document struct {
	ID   string
	Text string
}

// BM25Result is a single sparse-retriever hit.
type BM25Result struct {
	ChunkID string
	Score   float64
}

// IndexStats describes the sparse index's corpus for status reporting.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Config holds the sparse retriever's scoring parameters (spec §4.6,
// §6): k1=1.5, b=0.75 by default. The index stores only postings and
// document lengths; k1 and b are taken from the config the index is opened
// with, so they are not stored with the index.
type BM25Config struct {
	K1             float64
	B              float64
	MinTokenLength int
	StopWords      []string
}

// DefaultBM25Config returns the spec's default scoring parameters.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.5,
		B:              0.75,
		MinTokenLength: 2,
		StopWords:      DefaultStopWords,
	}
}

// DefaultStopWords is a small English stop-word list; unlike the teacher's
// code-oriented list, this one is tuned for prose documentation.
var DefaultStopWords = []string{
	"the", "a", "an", "and", "or", "but", "of", "to", "in", "on", "for",
	"with", "is", "are", "was", "were", "be", "been", "being", "this",
	"that", "it", "as", "by", "at", "from",
}

// BM25Index provides the sparse retriever's keyword search (spec §4.6).
// Index writes postings and document lengths on each call (the Indexer
// calls it once per file); IDF and average document length are computed at
// query time over the whole stored corpus, so the index is not rebuilt at
// the end of a batch.
type BM25Index interface {
	Index(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query string, limit int) ([]BM25Result, error)
	Delete(ctx context.Context, chunkIDs []string) error
	AllIDs() ([]string, error)
	Stats() IndexStats

	Save(path string) error
	Load(path string) error
	Close() error
}

// VectorResult is a single dense-retriever hit.
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32
}

// VectorStoreConfig configures the ANN vector store.
type VectorStoreConfig struct {
	Dimensions     int
	Metric         string // "cos" or "l2"
	M              int    // HNSW max connections per layer
	EfConstruction int
	EfSearch       int
}

// DefaultVectorStoreConfig returns sensible HNSW defaults for a given
// embedding dimensionality.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides the dense retriever's ANN search (spec §4.6).
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int

	Save(path string) error
	Load(path string) error
	Close() error
}

// GraphStore persists the property graph of spec §3: File/Section/
// Entity/Tag nodes and the seven edge kinds connecting them, and supports
// the bounded-hop traversal the graph retriever runs (spec §4.6).
type GraphStore interface {
	UpsertFile(ctx context.Context, file *model.File) error
	UpsertSection(ctx context.Context, section *model.Section) error
	UpsertEntity(ctx context.Context, entity *model.Entity) error
	UpsertTag(ctx context.Context, tag *model.Tag) error
	UpsertEdges(ctx context.Context, edges []model.Edge) error

	// DeleteFileLinks removes every edge referencing this file's sections
	// or file node, plus the section→chunk join rows, in preparation for
	// re-indexing or removal (spec §4.4 step 0, reverse of step 5). Entities
	// and tags are never deleted here, nor by any other GraphStore method;
	// they stay in the store once created. Callers
	// must run this before deleting the file's rows from any other store,
	// so nothing downstream ever dangles off a link this leaves behind.
	DeleteFileLinks(ctx context.Context, filePath string) error

	// DeleteFileStructure removes the file's own File and Section nodes.
	// Callers must run this last, once every other store has already
	// dropped the file (spec §4.4 step 0, reverse of step 1).
	DeleteFileStructure(ctx context.Context, filePath string) error

	// LinkSectionChunks records which chunks belong to which section, so
	// the graph retriever can translate traversal hits (which land on
	// sections/entities/tags) back to retrievable chunks. Not one of the
	// spec's seven edge kinds; it is the graph store's own join table.
	LinkSectionChunks(ctx context.Context, sectionID string, chunkIDs []string) error

	// SectionChunks maps a set of section IDs to the chunk IDs they own.
	SectionChunks(ctx context.Context, sectionIDs []string) (map[string][]string, error)

	// Traverse walks up to maxHops edges of the given kinds from the seed
	// node set, breadth first, and returns one hit (edge kind and hop count)
	// for every edge followed. Each node is expanded only at the first hop
	// it is reached, so paths through an already-reached node are not
	// counted separately. The graph retriever folds the hits into its
	// Σ edge_weight/hop² score.
	Traverse(ctx context.Context, seeds []model.NodeRef, kinds []model.EdgeKind, maxHops int) ([]model.TraversalHit, error)

	Stats(ctx context.Context) (entities, edges int, err error)
	Close() error
}

// ErrDimensionMismatch signals a query-time embedding dimensionality that
// disagrees with the frozen index identity (spec §7 ERR_MODEL_MISMATCH).
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (rebuild the index)", e.Expected, e.Got)
}
