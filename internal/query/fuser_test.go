package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuser_ChunkInAllThreeLists_ScoresHigherThanSingleList(t *testing.T) {
	f := NewFuser()

	dense := []Candidate{{ChunkID: "a", Score: 0.9}, {ChunkID: "b", Score: 0.8}}
	sparse := []Candidate{{ChunkID: "a", Score: 5.0}, {ChunkID: "c", Score: 4.0}}
	graph := []Candidate{{ChunkID: "a", Score: 1.0}}

	results := f.Fuse(dense, sparse, graph)
	top := results[0]
	assert.Equal(t, "a", top.ChunkID)
	assert.Equal(t, 3, top.ListCount)
}

func TestFuser_MissingList_ContributesZero_NotPenalty(t *testing.T) {
	f := NewFuser()

	// "a" appears only in dense at rank 1; "b" appears only in sparse at
	// rank 1. Spec §4.7: no missing-rank penalty term, so both should earn
	// exactly 1/(k+1) with nothing subtracted for the lists they're absent
	// from.
	dense := []Candidate{{ChunkID: "a", Score: 0.9}}
	sparse := []Candidate{{ChunkID: "b", Score: 5.0}}

	results := f.Fuse(dense, sparse, nil)

	want := 1.0 / float64(DefaultRRFConstant+1)
	byID := map[string]*FusedResult{}
	for _, r := range results {
		byID[r.ChunkID] = r
	}
	assert.InDelta(t, want, byID["a"].RRFScore, 1e-9)
	assert.InDelta(t, want, byID["b"].RRFScore, 1e-9)
}

func TestFuser_TieBreak_PrefersMoreListsThenLowerChunkID(t *testing.T) {
	f := NewFuser()

	// "z" and "a" both rank 1 in exactly one list each, so their RRF
	// scores tie; "z" should not win on score alone, and with equal list
	// counts the lexicographically smaller chunk ID wins.
	dense := []Candidate{{ChunkID: "z", Score: 0.9}}
	sparse := []Candidate{{ChunkID: "a", Score: 5.0}}

	results := f.Fuse(dense, sparse, nil)
	top := results[0]
	assert.Equal(t, "a", top.ChunkID)
}

func TestFuser_EmptyAllLists_ReturnsEmpty(t *testing.T) {
	f := NewFuser()
	results := f.Fuse(nil, nil, nil)
	assert.Empty(t, results)
}

func TestFuser_LimitsToTop100(t *testing.T) {
	f := NewFuser()
	dense := make([]Candidate, 150)
	for i := range dense {
		dense[i] = Candidate{ChunkID: string(rune('a' + i%26)) + string(rune(i)), Score: float64(150 - i)}
	}
	results := f.Fuse(dense, nil, nil)
	assert.LessOrEqual(t, len(results), DefaultFusedLimit)
}

func TestFuser_SingleRetrieverMode_DegeneratesToRename(t *testing.T) {
	f := NewFuser()
	sparse := []Candidate{{ChunkID: "x", Score: 10}, {ChunkID: "y", Score: 5}}

	results := f.Fuse(nil, sparse, nil)
	assert.Len(t, results, 2)
	assert.Equal(t, "x", results[0].ChunkID)
	assert.Equal(t, "y", results[1].ChunkID)
}
