package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotmd/dotmd/internal/engine"
	"github.com/dotmd/dotmd/internal/output"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	var detail bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long:  `Reports the number of indexed files, chunks, entities, and edges, and when the index was last updated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, jsonOutput, detail)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&detail, "detail", false, "Include per-store health (lock holder, vector/sparse index size)")
	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput, detail bool) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	summary, err := e.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	var health engine.StoreHealth
	if detail {
		health = e.StatusDetail(cmd.Context())
	}

	if jsonOutput {
		type jsonSummary struct {
			Files       int    `json:"files"`
			Chunks      int    `json:"chunks"`
			Entities    int    `json:"entities"`
			Edges       int    `json:"edges"`
			LastIndexed string `json:"last_indexed,omitempty"`
		}
		type jsonHealth struct {
			GraphLockHeld    bool    `json:"graph_lock_held"`
			GraphLockPID     int     `json:"graph_lock_pid,omitempty"`
			VectorCount      int     `json:"vector_count"`
			VectorOrphans    int     `json:"vector_orphans"`
			VectorDiskBytes  int64   `json:"vector_disk_bytes"`
			SparseDocuments  int     `json:"sparse_documents"`
			SparseTerms      int     `json:"sparse_terms"`
			SparseAvgDocSize float64 `json:"sparse_avg_doc_size"`
		}
		type jsonOut struct {
			jsonSummary
			Detail *jsonHealth `json:"detail,omitempty"`
		}
		js := jsonOut{jsonSummary: jsonSummary{Files: summary.Files, Chunks: summary.Chunks, Entities: summary.Entities, Edges: summary.Edges}}
		if !summary.LastIndexed.IsZero() {
			js.LastIndexed = summary.LastIndexed.Format("2006-01-02T15:04:05Z07:00")
		}
		if detail {
			js.Detail = &jsonHealth{
				GraphLockHeld: health.GraphLockHeld, GraphLockPID: health.GraphLockPID,
				VectorCount: health.VectorCount, VectorOrphans: health.VectorOrphans, VectorDiskBytes: health.VectorDiskBytes,
				SparseDocuments: health.SparseDocuments, SparseTerms: health.SparseTerms, SparseAvgDocSize: health.SparseAvgDocSize,
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(js)
	}

	out := output.New(cmd.OutOrStdout())
	if summary.Files == 0 {
		out.Status("", "No index found. Run 'dotmd index <directory>' first.")
		return nil
	}
	out.Statusf("📊", "Files: %d", summary.Files)
	out.Statusf("", "Chunks: %d", summary.Chunks)
	out.Statusf("", "Entities: %d", summary.Entities)
	out.Statusf("", "Edges: %d", summary.Edges)
	out.Statusf("", "Last indexed: %s", summary.LastIndexed.Format("2006-01-02 15:04:05"))

	if detail {
		if health.GraphLockHeld {
			out.Statusf("", "Index lock: held by PID %d", health.GraphLockPID)
		} else {
			out.Statusf("", "Index lock: free")
		}
		out.Statusf("", "Vector index: %d vectors (%d orphaned), %d bytes on disk", health.VectorCount, health.VectorOrphans, health.VectorDiskBytes)
		out.Statusf("", "Sparse index: %d documents, %d terms, avg doc length %.1f", health.SparseDocuments, health.SparseTerms, health.SparseAvgDocSize)
	}
	return nil
}
