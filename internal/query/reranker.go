package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Default cross-encoder reranker configuration (spec §4.8), grounded on
// the teacher's MLXReranker defaults, renamed to the dotmd domain.
const (
	DefaultRerankEndpoint = "http://localhost:9659"
	DefaultRerankModel    = "reranker-small"
	DefaultRerankTimeout  = 30 * time.Second

	// passageMaxChars bounds how much chunk text is sent to the
	// cross-encoder per candidate (spec §4.8: "truncated to the model's
	// input length").
	passageMaxChars = 2000

	// snippetMaxChars bounds the returned result snippet (spec §4.8).
	snippetMaxChars = 240
)

// RerankCandidate is one fused chunk handed to the reranker, carrying
// everything needed to build the (query, passage) pair and the final
// result record.
type RerankCandidate struct {
	ChunkID     string
	FilePath    string
	HeadingPath []string
	Text        string
	Fused       *FusedResult
}

// RerankedResult is one scored, reordered result (spec §4.8): chunk
// identity, a locator, a snippet, the length-penalized adjusted score, and
// the per-engine scores that fed the fusion stage.
type RerankedResult struct {
	ChunkID     string   `json:"chunk_id"`
	FilePath    string   `json:"file_path"`
	HeadingPath []string `json:"heading_path"`
	Snippet     string   `json:"snippet"`
	Score       float64  `json:"score"`
	DenseScore  float64  `json:"dense_score,omitempty"`
	SparseScore float64  `json:"sparse_score,omitempty"`
	GraphScore  float64  `json:"graph_score,omitempty"`
}

// Reranker scores (query, passage) pairs with a cross-encoder and returns
// candidates reordered by relevance (spec §4.8).
//
// Grounded on the teacher's Reranker interface (internal/search/
// reranker.go): same Rerank/Available/Close shape, generalized from raw
// document strings to RerankCandidate/RerankedResult so the length penalty
// and score floor have the chunk metadata they need.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []RerankCandidate, topK int) ([]RerankedResult, error)
	Available(ctx context.Context) bool
	Close() error
}

// NoOpReranker passes fused results through unscored, in fused order. It is
// the reranker the pipeline wires up when rerank=false (spec §4.8:
// "bypassed entirely") and as the degrade path if the cross-encoder service
// is unavailable.
//
// Grounded on the teacher's NoOpReranker.
type NoOpReranker struct{}

var _ Reranker = (*NoOpReranker)(nil)

func (n *NoOpReranker) Rerank(_ context.Context, query string, candidates []RerankCandidate, topK int) ([]RerankedResult, error) {
	results := make([]RerankedResult, len(candidates))
	for i, c := range candidates {
		results[i] = toRerankedResult(c, 1.0-float64(i)*0.01, query)
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (n *NoOpReranker) Available(_ context.Context) bool { return true }
func (n *NoOpReranker) Close() error                     { return nil }

// CrossEncoderReranker scores (query, passage) pairs via an HTTP
// cross-encoder server, then applies the spec's length penalty and score
// floor on top of the server's raw scores (spec §4.8).
//
// Grounded on the teacher's MLXReranker (internal/search/mlx_reranker.go):
// same HTTP client shape, health check, and /rerank request/response
// envelope, generalized to operate on RerankCandidate/RerankedResult and
// to apply the spec's post-processing the teacher's server-side scoring
// never did.
type CrossEncoderReranker struct {
	client   *http.Client
	endpoint string
	model    string
	timeout  time.Duration

	lengthPenaltyThreshold int
	scoreFloor             float64

	closed bool
}

var _ Reranker = (*CrossEncoderReranker)(nil)

// CrossEncoderConfig configures a CrossEncoderReranker.
type CrossEncoderConfig struct {
	Endpoint               string
	Model                  string
	Timeout                time.Duration
	LengthPenaltyThreshold int     // spec default 100 chars
	ScoreFloor             float64 // spec default -8.0
	SkipHealthCheck        bool
}

// NewCrossEncoderReranker creates a reranker client against an HTTP
// cross-encoder server, applying config defaults where zero-valued.
func NewCrossEncoderReranker(ctx context.Context, cfg CrossEncoderConfig) (*CrossEncoderReranker, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRerankEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRerankTimeout
	}
	if cfg.LengthPenaltyThreshold == 0 {
		cfg.LengthPenaltyThreshold = 100
	}
	if cfg.ScoreFloor == 0 {
		cfg.ScoreFloor = -8.0
	}

	r := &CrossEncoderReranker{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		endpoint:               cfg.Endpoint,
		model:                  cfg.Model,
		timeout:                cfg.Timeout,
		lengthPenaltyThreshold: cfg.LengthPenaltyThreshold,
		scoreFloor:             cfg.ScoreFloor,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := r.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("cross-encoder reranker health check failed: %w", err)
		}
	}

	slog.Debug("cross_encoder_reranker_created",
		slog.String("endpoint", r.endpoint), slog.String("model", r.model))

	return r, nil
}

func (r *CrossEncoderReranker) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to cross-encoder server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cross-encoder server unhealthy (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Rerank scores each candidate's passage against query, applies the length
// penalty and score floor, sorts descending, and returns the top topK
// (spec §4.8).
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, candidates []RerankCandidate, topK int) ([]RerankedResult, error) {
	if r.closed {
		return nil, fmt.Errorf("reranker is closed")
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = buildPassage(c)
	}

	reqBody := rerankRequest{Query: query, Documents: passages, Model: r.model}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(body))
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]RerankedResult, 0, len(decoded.Results))
	for _, raw := range decoded.Results {
		if raw.Index < 0 || raw.Index >= len(candidates) {
			continue
		}
		c := candidates[raw.Index]
		adjusted := r.applyLengthPenalty(raw.Score, len(c.Text))
		if adjusted < r.scoreFloor {
			continue
		}
		results = append(results, toRerankedResult(c, adjusted, query))
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// applyLengthPenalty multiplies a short passage's raw score by
// 0.5+0.5*(len/threshold) for passages shorter than threshold characters,
// leaving longer passages unpenalized (spec §4.8).
func (r *CrossEncoderReranker) applyLengthPenalty(score float64, textLen int) float64 {
	threshold := r.lengthPenaltyThreshold
	if threshold <= 0 || textLen >= threshold {
		return score
	}
	factor := 0.5 + 0.5*(float64(textLen)/float64(threshold))
	return score * factor
}

func (r *CrossEncoderReranker) Available(ctx context.Context) bool {
	if r.closed {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.healthCheck(checkCtx) == nil
}

func (r *CrossEncoderReranker) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if transport, ok := r.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

// buildPassage joins a candidate's heading path and chunk text into the
// cross-encoder's passage input, truncated to passageMaxChars (spec §4.8:
// "passage = heading_path joined + chunk_text, truncated to the model's
// input length").
func buildPassage(c RerankCandidate) string {
	passage := c.Text
	if len(c.HeadingPath) > 0 {
		passage = strings.Join(c.HeadingPath, " > ") + "\n" + c.Text
	}
	if len(passage) > passageMaxChars {
		passage = passage[:passageMaxChars]
	}
	return passage
}

// toRerankedResult builds the final result record for a candidate,
// carrying its per-engine fusion scores and a query-aware snippet.
func toRerankedResult(c RerankCandidate, score float64, query string) RerankedResult {
	r := RerankedResult{
		ChunkID:     c.ChunkID,
		FilePath:    c.FilePath,
		HeadingPath: c.HeadingPath,
		Snippet:     buildSnippet(c.Text, query),
		Score:       score,
	}
	if c.Fused != nil {
		r.DenseScore = c.Fused.DenseScore
		r.SparseScore = c.Fused.SparseScore
		r.GraphScore = c.Fused.GraphScore
	}
	return r
}

// buildSnippet returns the sentence with the strongest query-term overlap,
// plus its immediate neighbors, truncated to snippetMaxChars. Falls back to
// the chunk's head when no sentence overlaps any query term (spec §4.8).
func buildSnippet(text, query string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return truncate(text, snippetMaxChars)
	}

	queryTerms := make(map[string]bool)
	for _, tok := range tokenize(query) {
		queryTerms[strings.ToLower(tok)] = true
	}

	best, bestScore := -1, -1
	for i, s := range sentences {
		score := 0
		for _, tok := range tokenize(s) {
			if queryTerms[strings.ToLower(tok)] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if bestScore <= 0 {
		return truncate(strings.TrimSpace(sentences[0]), snippetMaxChars)
	}

	start := max(0, best-1)
	end := min(len(sentences), best+2)
	return truncate(strings.TrimSpace(strings.Join(sentences[start:end], " ")), snippetMaxChars)
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
