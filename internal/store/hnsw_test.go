package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWStore_AddAndSearch(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	ids := []string{"c1", "c2", "c3"}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
	}
	require.NoError(t, s.Add(ctx, ids, vectors))
	assert.Equal(t, 3, s.Count())

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].ID)
}

func TestHNSWStore_DeleteRemovesFromAllIDs(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"c1"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, s.Delete(ctx, []string{"c1"}))

	assert.False(t, s.Contains("c1"))
	assert.Equal(t, 0, s.Count())
}

func TestHNSWStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"c1", "c2"}, [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, s.Save(path))
	require.NoError(t, s.Close())

	loaded, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))

	assert.True(t, loaded.Contains("c1"))
	assert.True(t, loaded.Contains("c2"))
}
