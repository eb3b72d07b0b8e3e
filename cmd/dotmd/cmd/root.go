// Package cmd provides the CLI commands for dotmd.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotmd/dotmd/internal/config"
	"github.com/dotmd/dotmd/internal/engine"
	"github.com/dotmd/dotmd/pkg/version"
)

// rootFlags holds the persistent flags shared by every subcommand.
var rootFlags struct {
	indexRoot string
}

// NewRootCmd creates the root command for the dotmd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dotmd",
		Short:   "Hybrid dense/sparse/graph retrieval over a Markdown vault",
		Long:    `dotmd indexes a directory of Markdown notes and answers hybrid search queries over it, combining vector, BM25, and knowledge-graph retrieval with reciprocal rank fusion and optional cross-encoder reranking.`,
		Version: version.Version,
	}
	cmd.SetVersionTemplate("dotmd version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&rootFlags.indexRoot, "root", "", "Index directory (default: ~/.dotmd)")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves the process config (falling back to defaults) for
// the configured index directory.
func loadConfig() *config.Config {
	root := rootFlags.indexRoot
	if root == "" {
		root = config.DefaultRoot()
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
		cfg.Paths.Root = root
	}
	return cfg
}

// openEngine loads the process config and opens an Engine rooted at the
// configured index directory.
func openEngine() (*engine.Engine, error) {
	cfg := loadConfig()
	e, err := engine.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("open index at %s: %w", cfg.Paths.Root, err)
	}
	return e, nil
}
