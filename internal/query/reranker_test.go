package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpReranker_PreservesFusedOrder(t *testing.T) {
	n := &NoOpReranker{}
	candidates := []RerankCandidate{
		{ChunkID: "a", Text: "first"},
		{ChunkID: "b", Text: "second"},
		{ChunkID: "c", Text: "third"},
	}

	results, err := n.Rerank(context.Background(), "q", candidates, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "b", results[1].ChunkID)
	assert.Equal(t, "c", results[2].ChunkID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestNoOpReranker_RespectsTopK(t *testing.T) {
	n := &NoOpReranker{}
	candidates := []RerankCandidate{{ChunkID: "a"}, {ChunkID: "b"}, {ChunkID: "c"}}

	results, err := n.Rerank(context.Background(), "q", candidates, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func newTestServer(t *testing.T, scores map[int]float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/rerank":
			var req rerankRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			type result struct {
				Index int     `json:"index"`
				Score float64 `json:"score"`
			}
			resp := struct {
				Results []result `json:"results"`
			}{}
			for i := range req.Documents {
				score := scores[i]
				resp.Results = append(resp.Results, result{Index: i, Score: score})
			}
			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestCrossEncoderReranker_SortsByAdjustedScoreDescending(t *testing.T) {
	srv := newTestServer(t, map[int]float64{0: -1.0, 1: 3.0, 2: 0.5})
	defer srv.Close()

	r, err := NewCrossEncoderReranker(context.Background(), CrossEncoderConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer r.Close()

	candidates := []RerankCandidate{
		{ChunkID: "low", Text: longText()},
		{ChunkID: "high", Text: longText()},
		{ChunkID: "mid", Text: longText()},
	}

	results, err := r.Rerank(context.Background(), "query", candidates, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "high", results[0].ChunkID)
	assert.Equal(t, "mid", results[1].ChunkID)
	assert.Equal(t, "low", results[2].ChunkID)
}

func TestCrossEncoderReranker_ShortPassage_PenaltyReducesScore(t *testing.T) {
	srv := newTestServer(t, map[int]float64{0: 4.0})
	defer srv.Close()

	r, err := NewCrossEncoderReranker(context.Background(), CrossEncoderConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer r.Close()

	short := []RerankCandidate{{ChunkID: "short", Text: "tiny"}}
	results, err := r.Rerank(context.Background(), "q", short, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	// len("tiny")=4, factor = 0.5 + 0.5*(4/100) = 0.52
	assert.InDelta(t, 4.0*0.52, results[0].Score, 1e-9)
}

func TestCrossEncoderReranker_ScoreFloor_DropsLowScoringCandidates(t *testing.T) {
	srv := newTestServer(t, map[int]float64{0: -9.0, 1: 2.0})
	defer srv.Close()

	r, err := NewCrossEncoderReranker(context.Background(), CrossEncoderConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer r.Close()

	candidates := []RerankCandidate{
		{ChunkID: "dropped", Text: longText()},
		{ChunkID: "kept", Text: longText()},
	}
	results, err := r.Rerank(context.Background(), "q", candidates, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kept", results[0].ChunkID)
}

func TestCrossEncoderReranker_EmptyCandidates_ReturnsEmpty(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	r, err := NewCrossEncoderReranker(context.Background(), CrossEncoderConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer r.Close()

	results, err := r.Rerank(context.Background(), "q", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCrossEncoderReranker_Available_ReflectsHealthCheck(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	r, err := NewCrossEncoderReranker(context.Background(), CrossEncoderConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	assert.True(t, r.Available(context.Background()))
	require.NoError(t, r.Close())
	assert.False(t, r.Available(context.Background()))
}

func TestBuildSnippet_PicksSentenceWithStrongestOverlap(t *testing.T) {
	text := "Introductory filler sentence. The storage layer uses SQLite for metadata. Another unrelated sentence follows."
	snippet := buildSnippet(text, "storage metadata")
	assert.Contains(t, snippet, "storage layer")
}

func TestBuildSnippet_NoOverlap_FallsBackToHead(t *testing.T) {
	text := "First sentence here. Second sentence here."
	snippet := buildSnippet(text, "zzz nonexistent")
	assert.Contains(t, snippet, "First sentence")
}

func longText() string {
	s := ""
	for i := 0; i < 20; i++ {
		s += "This is a reasonably long sentence used to avoid the length penalty. "
	}
	return s
}
