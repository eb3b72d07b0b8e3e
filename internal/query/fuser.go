package query

import "sort"

// DefaultRRFConstant is the standard RRF smoothing constant (spec §4.7):
// k=60, the same value the teacher's RRFFusion uses.
const DefaultRRFConstant = 60

// DefaultFusedLimit is how many fused results Fuse returns (spec §4.7:
// "the fuser returns the top 100 fused chunks").
const DefaultFusedLimit = 100

// FusedResult is one chunk's combined score after RRF fusion, carrying its
// per-engine contributions for the reranker and for API responses.
type FusedResult struct {
	ChunkID     string
	RRFScore    float64
	ListCount   int // how many of the retrievers returned this chunk
	DenseScore  float64
	DenseRank   int // 1-indexed, 0 if absent
	SparseScore float64
	SparseRank  int
	GraphScore  float64
	GraphRank   int
}

// Fuser combines the dense/sparse/graph retrievers' ranked lists with
// Reciprocal Rank Fusion (spec §4.7).
//
// Grounded on the teacher's RRFFusion (struct + Fuse method + getOrCreate/
// toSortedSlice/compare helpers kept close to the original shape), but the
// scoring formula itself differs from the teacher's: spec §4.7 sums
// 1/(k+rank) over only the lists a chunk actually appears in (no
// missing-rank penalty term, no per-list weights, no 0-1 normalization),
// and a list that contains nothing (spec §4.6's mode-aware dispatch: an
// unused retriever mode returns an empty list) simply contributes zero to
// every chunk rather than needing special-casing.
type Fuser struct {
	K     int
	Limit int
}

// NewFuser creates a Fuser with the spec's frozen defaults (k=60, top 100).
func NewFuser() *Fuser {
	return &Fuser{K: DefaultRRFConstant, Limit: DefaultFusedLimit}
}

// Fuse combines the three retrievers' candidate lists. Any of the lists may
// be empty (a retriever mode that wasn't run, or a retriever that found
// nothing); a chunk's score is the sum of 1/(k+rank) over only the lists it
// appears in.
func (f *Fuser) Fuse(dense, sparse, graph []Candidate) []*FusedResult {
	k := f.K
	if k <= 0 {
		k = DefaultRRFConstant
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultFusedLimit
	}

	scores := make(map[string]*FusedResult)
	get := func(id string) *FusedResult {
		r, ok := scores[id]
		if !ok {
			r = &FusedResult{ChunkID: id}
			scores[id] = r
		}
		return r
	}

	for rank, c := range dense {
		r := get(c.ChunkID)
		r.DenseScore = c.Score
		r.DenseRank = rank + 1
		r.ListCount++
		r.RRFScore += 1.0 / float64(k+rank+1)
	}
	for rank, c := range sparse {
		r := get(c.ChunkID)
		r.SparseScore = c.Score
		r.SparseRank = rank + 1
		r.ListCount++
		r.RRFScore += 1.0 / float64(k+rank+1)
	}
	for rank, c := range graph {
		r := get(c.ChunkID)
		r.GraphScore = c.Score
		r.GraphRank = rank + 1
		r.ListCount++
		r.RRFScore += 1.0 / float64(k+rank+1)
	}

	results := make([]*FusedResult, 0, len(scores))
	for _, r := range scores {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return compareFused(results[i], results[j])
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// compareFused orders fused results by RRF score descending, then by how
// many retrievers agreed on the chunk descending, then by chunk ID
// ascending for a deterministic result among exact ties (spec §4.7).
func compareFused(a, b *FusedResult) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}
	if a.ListCount != b.ListCount {
		return a.ListCount > b.ListCount
	}
	return a.ChunkID < b.ChunkID
}
