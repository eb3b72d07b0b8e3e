package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dotmd/dotmd/internal/output"
)

func newIndexCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "index [directory]",
		Short: "Index a directory of Markdown notes",
		Long: `Scans a directory for Markdown files, chunks them by heading, embeds
and indexes every chunk across the vector, BM25, and graph stores, and
extracts wikilinks, tags, and named entities into the knowledge graph.

With --watch, the initial index is followed by an incremental watch loop
that re-indexes changed files and removes deleted ones until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			if watch {
				return runIndexWatch(cmd, dir)
			}
			return runIndex(cmd, dir)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and incrementally re-index changed files")
	return cmd
}

func runIndex(cmd *cobra.Command, dir string) error {
	out := output.New(cmd.OutOrStdout())

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	out.Statusf("📚", "Indexing %s...", dir)

	summary, results, err := e.Index(cmd.Context(), dir)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
			out.Warningf("%s: %s (failed at %s)", r.Path, r.Err, r.Stage)
		}
	}

	out.Successf("Indexed %d files, %d chunks, %d entities, %d edges", summary.Files, summary.Chunks, summary.Entities, summary.Edges)
	if failed > 0 {
		out.Warningf("%d file(s) failed to index", failed)
	}
	return nil
}

func runIndexWatch(cmd *cobra.Command, dir string) error {
	out := output.New(cmd.OutOrStdout())

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	// Ctrl+C must cancel the watch loop's context rather than kill the
	// process outright, so the deferred store checkpoint still runs.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out.Statusf("📚", "Indexing %s...", dir)
	out.Statusf("👀", "Watching %s for changes (Ctrl+C to stop)...", dir)

	if err := e.Watch(ctx, dir); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	out.Status("", "Watch stopped.")
	return nil
}
