package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query to execute"`
	Mode   string `json:"mode,omitempty" jsonschema:"retrieval mode: hybrid, semantic, bm25, or graph (default hybrid)"`
	TopK   int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 10"`
	Rerank bool   `json:"rerank,omitempty" jsonschema:"rerank fused results with the cross-encoder"`
	Expand bool   `json:"expand,omitempty" jsonschema:"expand the query with acronyms and heading context; off unless true"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"list of search results"`
}

// SearchResultOutput defines a single search result with the scores that
// contributed to its fused rank.
type SearchResultOutput struct {
	ChunkID     string   `json:"chunk_id" jsonschema:"the matched chunk's identifier"`
	FilePath    string   `json:"file_path" jsonschema:"absolute path of the matched file"`
	HeadingPath []string `json:"heading_path,omitempty" jsonschema:"ancestor headings of the matched chunk"`
	Snippet     string   `json:"snippet" jsonschema:"matched content snippet"`
	Score       float64  `json:"score" jsonschema:"fused (or reranked) relevance score"`
	DenseScore  float64  `json:"dense_score,omitempty" jsonschema:"contribution from the vector retriever"`
	SparseScore float64  `json:"sparse_score,omitempty" jsonschema:"contribution from the BM25 retriever"`
	GraphScore  float64  `json:"graph_score,omitempty" jsonschema:"contribution from the knowledge-graph retriever"`
}

// IndexInput defines the input schema for the index tool.
type IndexInput struct {
	Directory string `json:"directory" jsonschema:"directory of Markdown files to index"`
}

// IndexOutput defines the output schema for the index tool.
type IndexOutput struct {
	Files    int      `json:"files"`
	Chunks   int      `json:"chunks"`
	Entities int      `json:"entities"`
	Edges    int      `json:"edges"`
	Failed   []string `json:"failed,omitempty" jsonschema:"paths that failed to index, with their error"`
}

// StatusInput defines the input schema for the status tool (no parameters).
type StatusInput struct{}

// StatusOutput defines the output schema for the status tool.
type StatusOutput struct {
	Files       int    `json:"files"`
	Chunks      int    `json:"chunks"`
	Entities    int    `json:"entities"`
	Edges       int    `json:"edges"`
	LastIndexed string `json:"last_indexed,omitempty"`
}

// ClearInput defines the input schema for the clear tool. Confirm must be
// true for the call to take effect, mirroring the CLI's --yes flag.
type ClearInput struct {
	Confirm bool `json:"confirm" jsonschema:"must be true to actually clear the index"`
}

// ClearOutput defines the output schema for the clear tool.
type ClearOutput struct {
	Cleared bool `json:"cleared"`
}
