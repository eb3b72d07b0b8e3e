package mcp

import (
	"fmt"
	"strings"

	"github.com/dotmd/dotmd/internal/query"
)

// FormatSearchResults formats hybrid search results as markdown.
func FormatSearchResults(q string, results []query.RerankedResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", q)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\"\n\n", q))
	sb.WriteString(fmt.Sprintf("Found %d result", len(results)))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		formatResult(&sb, i+1, r)
	}

	return sb.String()
}

// formatResult formats a single result, preserving heading hierarchy so the
// caller understands where in the document the match sits.
func formatResult(sb *strings.Builder, num int, r query.RerankedResult) {
	heading := strings.Join(r.HeadingPath, " > ")
	if heading != "" {
		fmt.Fprintf(sb, "### %d. %s — %s (score: %.3f)\n\n", num, r.FilePath, heading, r.Score)
	} else {
		fmt.Fprintf(sb, "### %d. %s (score: %.3f)\n\n", num, r.FilePath, r.Score)
	}

	sb.WriteString(r.Snippet)
	sb.WriteString("\n\n---\n\n")
}

// ToSearchResultOutput converts a fused/reranked result to the MCP output
// schema.
func ToSearchResultOutput(r query.RerankedResult) SearchResultOutput {
	return SearchResultOutput{
		ChunkID:     r.ChunkID,
		FilePath:    r.FilePath,
		HeadingPath: r.HeadingPath,
		Snippet:     r.Snippet,
		Score:       r.Score,
		DenseScore:  r.DenseScore,
		SparseScore: r.SparseScore,
		GraphScore:  r.GraphScore,
	}
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit == 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
