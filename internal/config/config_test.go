package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, 512, c.Chunking.MaxTokens)
	assert.Equal(t, 50, c.Chunking.OverlapTokens)
	assert.Equal(t, 1.5, c.BM25.K1)
	assert.Equal(t, 0.75, c.BM25.B)
	assert.Equal(t, ExtractStructural, c.Embedding.ExtractDepth)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, c.Paths.Root)
	assert.Equal(t, 512, c.Chunking.MaxTokens)
}

func TestLoadMergesYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, writeFile(yamlPath, "bm25:\n  k1: 2.0\nchunking:\n  max_tokens: 256\n"))

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2.0, c.BM25.K1)
	assert.Equal(t, 256, c.Chunking.MaxTokens)
	assert.Equal(t, 0.75, c.BM25.B) // untouched field keeps default
}

func TestLoadRejectsInvalidOverlap(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, writeFile(yamlPath, "chunking:\n  max_tokens: 100\n  overlap_tokens: 100\n"))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestEnvOverrideWins(t *testing.T) {
	t.Setenv("DOTMD_BM25_K1", "1.8")
	dir := t.TempDir()
	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1.8, c.BM25.K1)
}

func TestIndexIdentityRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewConfig()
	id := IdentityFromConfig(c)
	require.NoError(t, WriteIndexIdentity(dir, id))

	loaded, ok, err := ReadIndexIdentity(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, loaded.Matches(c))
}

func TestIndexIdentityMissingIsNotError(t *testing.T) {
	_, ok, err := ReadIndexIdentity(t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
