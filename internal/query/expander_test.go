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

func TestExpander_ExactAcronymMatch_AppendsExpansion(t *testing.T) {
	e := NewExpander(nil, nil)
	got := e.Expand("what is our API strategy")

	assert.Contains(t, got, "API")
	assert.Contains(t, got, "application programming interface")
	assert.Contains(t, got, "strategy")
}

func TestExpander_FuzzyAcronymMatch_WithinEditDistanceOne(t *testing.T) {
	e := NewExpander(nil, nil)
	got := e.Expand("APIs are great") // "APIs" is edit-distance 1 from "API"

	assert.Contains(t, got, "application programming interface")
}

func TestExpander_NoMatchOutsideEditDistance_NotExpanded(t *testing.T) {
	e := NewExpander(nil, nil)
	got := e.Expand("random unrelated term")

	assert.Equal(t, "random unrelated term", got)
}

func TestExpander_OriginalTermsAlwaysKept(t *testing.T) {
	e := NewExpander(nil, nil)
	got := e.Expand("API design")

	assert.Contains(t, got, "API")
	assert.Contains(t, got, "design")
}

func TestExpander_Dedup_NoDuplicateTerms(t *testing.T) {
	e := NewExpander(nil, nil)
	got := e.Expand("API API api")

	count := 0
	for _, tok := range tokenize(got) {
		if tok == "API" {
			count++
		}
	}
	assert.LessOrEqual(t, count, 1)
}

func TestExpander_HeadingStructureExpansion_AddsAncestorTitles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	metadata, err := store.NewMetadataStore(filepath.Join(dir, "metadata.db"))
	require.NoError(t, err)
	defer metadata.Close()

	file := &model.File{Path: "/vault/a.md", Title: "A", Checksum: "c1"}
	require.NoError(t, metadata.SaveFile(ctx, file))
	require.NoError(t, metadata.SaveChunks(ctx, []*model.Chunk{
		{ID: "chunk1", FilePath: file.Path, HeadingPath: []string{"Project X", "Architecture", "Storage"}, Text: "body"},
	}))

	hi, err := NewHeadingIndex(ctx, metadata)
	require.NoError(t, err)

	e := NewExpander(nil, hi)
	got := e.Expand("tell me about Storage")

	assert.Contains(t, got, "Project X")
	assert.Contains(t, got, "Architecture")
}

func TestExpander_EmptyQuery_ReturnsUnchanged(t *testing.T) {
	e := NewExpander(nil, nil)
	assert.Equal(t, "", e.Expand(""))
}

func TestHeadingIndex_UnknownTitle_ReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	metadata, err := store.NewMetadataStore(filepath.Join(dir, "metadata.db"))
	require.NoError(t, err)
	defer metadata.Close()

	hi, err := NewHeadingIndex(ctx, metadata)
	require.NoError(t, err)

	_, ok := hi.Ancestors("Nonexistent Heading")
	assert.False(t, ok)
}
