package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotmd/dotmd/internal/logging"
	"github.com/dotmd/dotmd/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Starts an MCP server exposing search/index/status/clear as tools, and
every indexed file as a file:// resource, for AI clients such as Claude
Code and Cursor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, transport)
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")
	return cmd
}

func runServe(cmd *cobra.Command, transport string) error {
	cfg := loadConfig()

	// MCP stdio sessions reserve stdout exclusively for JSON-RPC traffic, so
	// logging must be redirected to a file before anything else runs.
	cleanup, err := logging.SetupMCPModeWithLevel(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("set up MCP logging: %w", err)
	}
	defer cleanup()

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	srv, err := mcp.NewServer(e, cfg, cfg.Paths.Root)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	if err := srv.RegisterResources(cmd.Context()); err != nil {
		return fmt.Errorf("register resources: %w", err)
	}

	return srv.Serve(cmd.Context(), transport)
}
