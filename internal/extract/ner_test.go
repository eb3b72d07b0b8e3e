package extract

import (
	"context"
	"testing"

	"github.com/dotmd/dotmd/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	detections []Detection
}

func (s *stubBackend) Detect(ctx context.Context, text string, types []string) ([]Detection, error) {
	return s.detections, nil
}

func TestNERExtractor_MentionsAndCoOccurs(t *testing.T) {
	backend := &stubBackend{detections: []Detection{
		{Surface: "Anthropic", Type: model.EntityOrganization, Score: 0.9},
		{Surface: "Go", Type: model.EntityTechnology, Score: 0.8},
	}}
	e := NewNERExtractor(backend, nil, 0.5)

	chunk := &model.Chunk{FilePath: "a.md", HeadingPath: []string{"Intro"}, Text: "Anthropic uses Go."}
	res, err := e.Extract(context.Background(), chunk, &model.File{Path: "a.md"})
	require.NoError(t, err)
	require.Len(t, res.Entities, 2)

	var mentions, coOccurs int
	for _, edge := range res.Edges {
		switch edge.Kind {
		case model.EdgeMentions:
			mentions++
		case model.EdgeCoOccurs:
			coOccurs++
		}
	}
	assert.Equal(t, 2, mentions)
	assert.Equal(t, 1, coOccurs)
}

func TestNERExtractor_ScoreFloorFilters(t *testing.T) {
	backend := &stubBackend{detections: []Detection{
		{Surface: "Low Confidence", Type: model.EntityConcept, Score: 0.1},
	}}
	e := NewNERExtractor(backend, nil, 0.5)
	res, err := e.Extract(context.Background(), &model.Chunk{FilePath: "a.md"}, &model.File{Path: "a.md"})
	require.NoError(t, err)
	assert.Empty(t, res.Entities)
	assert.Empty(t, res.Edges)
}

func TestHeuristicNERBackend_DetectsMultiWordProperNoun(t *testing.T) {
	b := NewHeuristicNERBackend()
	dets, err := b.Detect(context.Background(), "The Anthropic Research Team published a paper.", nil)
	require.NoError(t, err)
	require.NotEmpty(t, dets)
}

// TestHeuristicNERBackend_DetectsSingleWordPersonName exercises spec §8
// scenario D: a chunk mentioning "Alice" and "Bob" by first name alone
// (no multi-word run to match) still needs both to surface as person
// entities, so the CO_OCCURS edge between them can exist at all.
func TestHeuristicNERBackend_DetectsSingleWordPersonName(t *testing.T) {
	b := NewHeuristicNERBackend()
	dets, err := b.Detect(context.Background(), "Alice reviewed the proposal with Bob yesterday.", nil)
	require.NoError(t, err)

	var names []string
	for _, d := range dets {
		if d.Type == model.EntityPerson {
			names = append(names, d.Surface)
		}
	}
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, names)
}

func TestHeuristicNERBackend_SkipsCommonCapitalizedWords(t *testing.T) {
	b := NewHeuristicNERBackend()
	dets, err := b.Detect(context.Background(), "This is a normal sentence. However, it continues.", nil)
	require.NoError(t, err)

	for _, d := range dets {
		assert.NotEqual(t, model.EntityPerson, d.Type, "common word %q should not be treated as a name", d.Surface)
	}
}

func TestHeuristicNERBackend_RespectsTypeFilterForSingleWordNames(t *testing.T) {
	b := NewHeuristicNERBackend()
	dets, err := b.Detect(context.Background(), "Alice reviewed the proposal with Bob yesterday.", []string{"technology"})
	require.NoError(t, err)

	for _, d := range dets {
		assert.NotEqual(t, model.EntityPerson, d.Type)
	}
}
