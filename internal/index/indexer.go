package index

import (
	"context"
	"fmt"
	"log/slog"

	derrors "github.com/dotmd/dotmd/internal/errors"
	"github.com/dotmd/dotmd/internal/extract"
	"github.com/dotmd/dotmd/internal/model"
	"github.com/dotmd/dotmd/internal/store"

	internalchunk "github.com/dotmd/dotmd/internal/chunk"
)

// Indexer writes one file's chunks, vectors, sparse postings, and graph
// nodes/edges across the four stores in the order spec §4.4 requires, so
// no store ever observes a dangling reference to another's not-yet-written
// row.
type Indexer struct {
	cfg Config
}

// New builds an Indexer over the given store/model wiring.
func New(cfg Config) *Indexer {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 32
	}
	return &Indexer{cfg: cfg}
}

// IndexFile indexes (or re-indexes) a single discovered file. If the file
// was previously indexed with a different checksum, its prior rows are
// removed from all four stores first (spec §4.4 step 0). A failure at any
// step aborts the file and the error identifies the stage that failed so
// the caller can report FAILED(stage). A failure after chunking rolls back
// the rows this attempt wrote, leaving the file absent from every store; a
// changed file's previous version, already removed, is not restored.
func (ix *Indexer) IndexFile(ctx context.Context, file *model.File, content []byte) (res Result) {
	res = Result{Path: file.Path, Stage: StageDiscovered}
	defer func() {
		if res.Err != nil && res.Stage != StageDiscovered {
			if rbErr := ix.RemoveFile(ctx, file.Path); rbErr != nil {
				slog.Warn("roll back failed file", slog.String("path", file.Path), slog.String("error", rbErr.Error()))
			}
		}
	}()

	// Registering here (in addition to IndexDirectory's batch-wide
	// pre-registration) covers the watch loop's single-file path, where
	// there is no batch to pre-register ahead of time.
	if ix.cfg.Resolver != nil {
		ix.cfg.Resolver.Register(file.Path, file.Title)
	}

	if prior, err := ix.cfg.Metadata.GetFile(ctx, file.Path); err == nil && prior.Checksum == file.Checksum {
		res.Stage = StageIndexed
		return res
	} else if err == nil {
		if removeErr := ix.RemoveFile(ctx, file.Path); removeErr != nil {
			res.Err = derrors.IndexWriteError(fmt.Sprintf("remove prior rows for %s", file.Path), removeErr)
			return res
		}
	}

	chunks, fm, err := ix.cfg.Chunker.Chunk(ctx, &internalchunk.FileInput{Path: file.Path, Title: file.Title, Content: content})
	if err != nil {
		res.Err = derrors.ParseError(fmt.Sprintf("chunk %s", file.Path), err)
		return res
	}
	modelChunks := toModelChunks(chunks)
	res.ChunkCount = len(modelChunks)
	res.Stage = StageChunked

	if err := ix.writeGraphStructure(ctx, file, modelChunks); err != nil {
		res.Err = derrors.IndexWriteError(fmt.Sprintf("write graph structure for %s", file.Path), err)
		return res
	}

	if err := ix.cfg.Metadata.SaveFile(ctx, file); err != nil {
		res.Err = derrors.IndexWriteError(fmt.Sprintf("save file record for %s", file.Path), err)
		return res
	}
	if len(modelChunks) > 0 {
		if err := ix.cfg.Metadata.SaveChunks(ctx, modelChunks); err != nil {
			res.Err = derrors.IndexWriteError(fmt.Sprintf("save chunks for %s", file.Path), err)
			return res
		}
	}

	if len(modelChunks) > 0 {
		if err := ix.embedAndStore(ctx, modelChunks); err != nil {
			res.Err = derrors.IndexWriteError(fmt.Sprintf("embed and store vectors for %s", file.Path), err)
			return res
		}
	}
	res.Stage = StageEmbedded

	if len(modelChunks) > 0 {
		docs := make([]store.Document, len(modelChunks))
		for i, c := range modelChunks {
			docs[i] = store.Document{ID: c.ID, Text: c.Text}
		}
		if err := ix.cfg.Sparse.Index(ctx, docs); err != nil {
			res.Err = derrors.IndexWriteError(fmt.Sprintf("index sparse postings for %s", file.Path), err)
			return res
		}
	}

	if err := ix.extractAndLink(ctx, file, modelChunks, fm); err != nil {
		res.Err = derrors.IndexWriteError(fmt.Sprintf("extract entities/edges for %s", file.Path), err)
		return res
	}

	res.Stage = StageIndexed
	slog.Debug("indexed file", slog.String("path", file.Path), slog.Int("chunks", len(modelChunks)))
	return res
}

// writeGraphStructure upserts the File node and its Section tree (spec
// §4.4 step 1) ahead of every other write.
func (ix *Indexer) writeGraphStructure(ctx context.Context, file *model.File, chunks []*model.Chunk) error {
	if err := ix.cfg.Graph.UpsertFile(ctx, file); err != nil {
		return err
	}
	sections, edges := buildSectionTree(file.Path, chunks)
	for _, sec := range sections {
		if err := ix.cfg.Graph.UpsertSection(ctx, sec); err != nil {
			return err
		}
	}
	if len(edges) > 0 {
		if err := ix.cfg.Graph.UpsertEdges(ctx, edges); err != nil {
			return err
		}
	}
	return nil
}

// embedAndStore batches chunk texts through the embedder and writes the
// resulting vectors, keyed by chunk ID (spec §4.4 step 3).
func (ix *Indexer) embedAndStore(ctx context.Context, chunks []*model.Chunk) error {
	for start := 0; start < len(chunks); start += ix.cfg.EmbedBatchSize {
		end := min(start+ix.cfg.EmbedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
			ids[i] = c.ID
		}

		vectors, err := ix.cfg.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if err := ix.cfg.Vectors.Add(ctx, ids, vectors); err != nil {
			return err
		}
	}
	return nil
}

// extractAndLink runs the structural and (if configured) NER extractors
// over every chunk plus the file's frontmatter, then writes the resulting
// entities, tags, and edges to the graph store and links each section to
// the chunks it owns (spec §4.4 step 5, §4.3).
func (ix *Indexer) extractAndLink(ctx context.Context, file *model.File, chunks []*model.Chunk, fm *internalchunk.Frontmatter) error {
	var allEntities []model.Entity
	var allTags []model.Tag
	var allEdges []model.Edge
	seenEntity := make(map[string]bool)
	seenTag := make(map[string]bool)

	collect := func(res extract.Result) {
		for _, e := range res.Entities {
			if !seenEntity[e.ID] {
				seenEntity[e.ID] = true
				allEntities = append(allEntities, e)
			}
		}
		for _, t := range res.Tags {
			if !seenTag[t.ID] {
				seenTag[t.ID] = true
				allTags = append(allTags, t)
			}
		}
		allEdges = append(allEdges, res.Edges...)
	}

	for _, c := range chunks {
		if ix.cfg.Structural != nil {
			res, err := ix.cfg.Structural.Extract(ctx, c, file)
			if err != nil {
				return err
			}
			collect(res)
		}
		if ix.cfg.NER != nil {
			res, err := ix.cfg.NER.Extract(ctx, c, file)
			if err != nil {
				return err
			}
			collect(res)
		}
	}

	if fm != nil {
		collect(extract.FrontmatterEdges(file.Path, model.Frontmatter(fm.Values)))
	}

	for _, e := range allEntities {
		if err := ix.cfg.Graph.UpsertEntity(ctx, &e); err != nil {
			return err
		}
	}
	for _, t := range allTags {
		if err := ix.cfg.Graph.UpsertTag(ctx, &t); err != nil {
			return err
		}
	}
	if len(allEdges) > 0 {
		if err := ix.cfg.Graph.UpsertEdges(ctx, allEdges); err != nil {
			return err
		}
	}

	for sectionID, chunkIDs := range sectionChunkMap(file.Path, chunks) {
		if err := ix.cfg.Graph.LinkSectionChunks(ctx, sectionID, chunkIDs); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFile deletes a file's rows from all four stores, in the reverse of
// the spec §4.4 write order (graph structure → metadata chunks → vectors →
// sparse → graph entities/edges), so nothing downstream ever keeps a
// reference to a row another store has already dropped: graph entity/edge
// links and section→chunk join rows first (undoing write step 5), then
// sparse (step 4), then vectors (step 3), then the metadata chunk and file
// rows (step 2), and finally the graph's own file/section structure (step
// 1), which nothing else in the system can point at once everything above
// is gone. Entities and tags are never removed here; they are corpus-global
// and stay in the graph store.
func (ix *Indexer) RemoveFile(ctx context.Context, path string) error {
	chunks, err := ix.cfg.Metadata.GetChunksByFile(ctx, path)
	if err != nil {
		return err
	}
	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = c.ID
	}

	if err := ix.cfg.Graph.DeleteFileLinks(ctx, path); err != nil {
		return err
	}
	if len(chunkIDs) > 0 {
		if err := ix.cfg.Sparse.Delete(ctx, chunkIDs); err != nil {
			return err
		}
		if err := ix.cfg.Vectors.Delete(ctx, chunkIDs); err != nil {
			return err
		}
	}
	if err := ix.cfg.Metadata.DeleteChunksByFile(ctx, path); err != nil {
		return err
	}
	if err := ix.cfg.Metadata.DeleteFile(ctx, path); err != nil {
		return err
	}
	if err := ix.cfg.Graph.DeleteFileStructure(ctx, path); err != nil {
		return err
	}
	return nil
}

func toModelChunks(chunks []*internalchunk.Chunk) []*model.Chunk {
	out := make([]*model.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = &model.Chunk{
			ID:          c.ID,
			FilePath:    c.FilePath,
			Ordinal:     c.Ordinal,
			HeadingPath: c.HeadingPath,
			Text:        c.Text,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
			Tokens:      c.Tokens,
		}
	}
	return out
}
