package extract

import (
	"context"
	"testing"

	"github.com/dotmd/dotmd/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuralExtractor_WikilinkResolved(t *testing.T) {
	resolver := NewTitleIndex(map[string]string{"other.md": "Other Doc"})
	e := NewStructuralExtractor(resolver)

	chunk := &model.Chunk{FilePath: "a.md", HeadingPath: []string{"Intro"}, Text: "See [[Other Doc]] for details."}
	res, err := e.Extract(context.Background(), chunk, &model.File{Path: "a.md"})
	require.NoError(t, err)
	require.Len(t, res.Edges, 1)
	assert.Equal(t, model.EdgeLinksTo, res.Edges[0].Kind)
	assert.Equal(t, "other.md", res.Edges[0].ToID)
}

func TestStructuralExtractor_UnresolvedWikilinkIsSynthetic(t *testing.T) {
	e := NewStructuralExtractor(NewTitleIndex(nil))
	chunk := &model.Chunk{FilePath: "a.md", Text: "See [[Nonexistent Page]]."}
	res, err := e.Extract(context.Background(), chunk, &model.File{Path: "a.md"})
	require.NoError(t, err)
	require.Len(t, res.Edges, 1)
	assert.Equal(t, "Nonexistent Page", res.Edges[0].ToID)
}

func TestStructuralExtractor_TagsExtracted(t *testing.T) {
	e := NewStructuralExtractor(nil)
	chunk := &model.Chunk{FilePath: "a.md", Text: "This covers #golang and #retrieval topics."}
	res, err := e.Extract(context.Background(), chunk, &model.File{Path: "a.md"})
	require.NoError(t, err)
	require.Len(t, res.Tags, 2)
	require.Len(t, res.Edges, 2)
	for _, edge := range res.Edges {
		assert.Equal(t, model.EdgeHasTag, edge.Kind)
	}
}

func TestStructuralExtractor_MarkdownLinkSkipsExternal(t *testing.T) {
	e := NewStructuralExtractor(nil)
	chunk := &model.Chunk{FilePath: "a.md", Text: "[local](./notes.md) and [ext](https://example.com)."}
	res, err := e.Extract(context.Background(), chunk, &model.File{Path: "a.md"})
	require.NoError(t, err)
	require.Len(t, res.Edges, 1)
	assert.Equal(t, "./notes", res.Edges[0].ToID)
}

func TestFrontmatterEdges_TagsSplit(t *testing.T) {
	res := FrontmatterEdges("a.md", model.Frontmatter{"tags": "go, retrieval", "title": "A"})
	var tagEdges, otherEdges int
	for _, e := range res.Edges {
		if e.Kind == model.EdgeHasTag {
			tagEdges++
		} else {
			otherEdges++
		}
	}
	assert.Equal(t, 2, tagEdges)
	assert.Equal(t, 2, otherEdges)
}
