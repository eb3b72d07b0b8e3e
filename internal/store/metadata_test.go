package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotmd/dotmd/internal/model"
)

func newTestMetadataStore(t *testing.T) MetadataStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewMetadataStore(filepath.Join(dir, "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMetadataStore_SaveAndGetFile(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	f := &model.File{
		Path:      "/notes/intro.md",
		Title:     "Intro",
		Checksum:  "abc123",
		Size:      42,
		ModTime:   time.Now().Truncate(time.Second).UTC(),
		IndexedAt: time.Now().Truncate(time.Second).UTC(),
	}
	require.NoError(t, s.SaveFile(ctx, f))

	got, err := s.GetFile(ctx, f.Path)
	require.NoError(t, err)
	assert.Equal(t, f.Path, got.Path)
	assert.Equal(t, f.Title, got.Title)
	assert.Equal(t, f.Checksum, got.Checksum)
	assert.Equal(t, f.ModTime, got.ModTime)
}

func TestMetadataStore_SaveFileUpsert(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	f := &model.File{Path: "/a.md", Title: "A", Checksum: "v1"}
	require.NoError(t, s.SaveFile(ctx, f))
	f.Checksum = "v2"
	require.NoError(t, s.SaveFile(ctx, f))

	got, err := s.GetFile(ctx, "/a.md")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Checksum)

	files, err := s.ListFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestMetadataStore_DeleteFile(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFile(ctx, &model.File{Path: "/a.md", Title: "A"}))
	require.NoError(t, s.DeleteFile(ctx, "/a.md"))

	_, err := s.GetFile(ctx, "/a.md")
	assert.Error(t, err)
}

func TestMetadataStore_ChunksRoundTripHeadingPath(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFile(ctx, &model.File{Path: "/a.md", Title: "A"}))
	chunks := []*model.Chunk{
		{ID: "c1", FilePath: "/a.md", Ordinal: 0, HeadingPath: []string{"Intro", "Background"}, Text: "hello", Tokens: 1},
		{ID: "c2", FilePath: "/a.md", Ordinal: 1, HeadingPath: nil, Text: "world", Tokens: 1},
	}
	require.NoError(t, s.SaveChunks(ctx, chunks))

	got, err := s.GetChunk(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Intro", "Background"}, got.HeadingPath)

	got2, err := s.GetChunk(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, got2.HeadingPath)
}

func TestMetadataStore_GetChunksByFileOrdered(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFile(ctx, &model.File{Path: "/a.md", Title: "A"}))
	require.NoError(t, s.SaveChunks(ctx, []*model.Chunk{
		{ID: "c2", FilePath: "/a.md", Ordinal: 1, Text: "second"},
		{ID: "c1", FilePath: "/a.md", Ordinal: 0, Text: "first"},
	}))

	chunks, err := s.GetChunksByFile(ctx, "/a.md")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c1", chunks[0].ID)
	assert.Equal(t, "c2", chunks[1].ID)
}

func TestMetadataStore_DeleteChunksByFile(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFile(ctx, &model.File{Path: "/a.md", Title: "A"}))
	require.NoError(t, s.SaveChunks(ctx, []*model.Chunk{{ID: "c1", FilePath: "/a.md"}}))
	require.NoError(t, s.DeleteChunksByFile(ctx, "/a.md"))

	chunks, err := s.GetChunksByFile(ctx, "/a.md")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMetadataStore_Stats(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFile(ctx, &model.File{Path: "/a.md", Title: "A"}))
	require.NoError(t, s.SaveChunks(ctx, []*model.Chunk{{ID: "c1", FilePath: "/a.md"}, {ID: "c2", FilePath: "/a.md"}}))

	files, chunks, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	assert.Equal(t, 2, chunks)
}

func TestJoinSplitHeadingPath(t *testing.T) {
	path := []string{"Intro", "Sub, section", "Deep"}
	joined := joinHeadingPath(path)
	assert.Equal(t, path, splitHeadingPath(joined))
	assert.Empty(t, splitHeadingPath(""))
}
