package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotmd/dotmd/internal/output"
	"github.com/dotmd/dotmd/internal/query"
)

type searchOptions struct {
	mode   string
	topK   int
	rerank bool
	expand bool
	format string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed vault",
		Long: `Runs the hybrid retrieval pipeline over the indexed vault: dense and BM25
retrievers in parallel, then the graph retriever seeded from their results,
fused with reciprocal rank fusion, then optionally reranked by a
cross-encoder.

Examples:
  dotmd search "project deadlines"
  dotmd search "caching strategy" --mode semantic --top-k 5
  dotmd search "sqlite" --rerank --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "Retrieval mode: hybrid, semantic, bm25, graph")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "Rerank results with the cross-encoder")
	cmd.Flags().BoolVar(&opts.expand, "expand", true, "Expand the query with acronyms and heading context")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, q string, opts searchOptions) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	expand := opts.expand
	results, err := e.Search(cmd.Context(), q, query.Options{
		Mode:   query.Mode(opts.mode),
		TopK:   opts.topK,
		Rerank: opts.rerank,
		Expand: &expand,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	out := output.New(cmd.OutOrStdout())
	if len(results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", q))
		return nil
	}

	out.Statusf("🔍", "Found %d results for %q:", len(results), q)
	out.Newline()
	for i, r := range results {
		heading := strings.Join(r.HeadingPath, " > ")
		out.Statusf("", "%d. %s (%s) — score %.3f", i+1, r.FilePath, heading, r.Score)
		out.Status("", "   "+r.Snippet)
		out.Newline()
	}
	return nil
}
