// Package index implements the ingestion pipeline's Indexer (spec §4.4):
// the ordered write sequence that keeps the metadata, vector, sparse, and
// graph stores referentially consistent as files are added, changed, and
// removed.
package index

import (
	"github.com/dotmd/dotmd/internal/chunk"
	"github.com/dotmd/dotmd/internal/embed"
	"github.com/dotmd/dotmd/internal/extract"
	"github.com/dotmd/dotmd/internal/store"
)

// Stage names a step of the per-file indexing state machine (spec §4.4):
// IDLE -> DISCOVERED -> CHUNKED -> EMBEDDED -> INDEXED, or FAILED(stage).
type Stage string

const (
	StageIdle       Stage = "IDLE"
	StageDiscovered Stage = "DISCOVERED"
	StageChunked    Stage = "CHUNKED"
	StageEmbedded   Stage = "EMBEDDED"
	StageIndexed    Stage = "INDEXED"
)

// Config configures the Indexer's write targets and extraction depth.
type Config struct {
	Metadata store.MetadataStore
	Vectors  store.VectorStore
	Sparse   store.BM25Index
	Graph    store.GraphStore
	Embedder embed.Embedder
	Chunker  chunk.Chunker

	Structural extract.Extractor // always run; nil disables (tests only)
	NER        extract.Extractor // nil when extract_depth != "ner"

	// Resolver is the same TitleIndex backing Structural's wikilink
	// resolution. IndexDirectory registers each discovered file's title
	// into it before dispatching the batch, so a wikilink to a file
	// discovered later in the same batch still resolves. Nil disables
	// pre-registration (tests that don't exercise cross-file links).
	Resolver *extract.TitleIndex

	EmbedBatchSize int
}

// Result reports the outcome of indexing one file, for batch-level status
// reporting (spec §6 Status).
type Result struct {
	Path       string
	Stage      Stage
	ChunkCount int
	Err        error
}

// Failed reports whether this file's indexing did not reach StageIndexed.
func (r Result) Failed() bool {
	return r.Err != nil
}
