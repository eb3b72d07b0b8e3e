// Package mcp implements the Model Context Protocol (MCP) server for dotmd,
// exposing the hybrid retrieval core's index/search/status/clear surface
// (spec §6) to AI clients such as Claude Code and Cursor.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dotmd/dotmd/internal/config"
	"github.com/dotmd/dotmd/internal/engine"
	"github.com/dotmd/dotmd/internal/query"
	"github.com/dotmd/dotmd/pkg/version"
)

// Server is the MCP server for dotmd. It bridges AI clients with a single
// engine.Engine, the same façade the CLI drives.
type Server struct {
	mcp    *mcp.Server
	engine *engine.Engine
	config *config.Config
	logger *slog.Logger

	rootPath string
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server fronting engine.
func NewServer(eng *engine.Engine, cfg *config.Config, rootPath string) (*Server, error) {
	if eng == nil {
		return nil, errors.New("engine is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		engine:   eng,
		config:   cfg,
		rootPath: rootPath,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "dotmd",
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools/resources
	)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "dotmd", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "search",
			Description: "Hybrid search over the indexed vault: dense, BM25, and knowledge-graph retrieval fused with reciprocal rank fusion, with optional cross-encoder reranking.",
		},
		{
			Name:        "index",
			Description: "Index a directory of Markdown notes: chunk by heading, embed, and extract wikilinks/tags/entities into the knowledge graph.",
		},
		{
			Name:        "status",
			Description: "Report index health: file, chunk, entity, and edge counts, and when the index was last updated.",
		},
		{
			Name:        "clear",
			Description: "Remove every file from the index, leaving an empty index in place.",
		},
	}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	tools := s.ListTools()

	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpIndexHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpStatusHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[3].Name, Description: tools[3].Description}, s.mcpClearHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", len(tools)))
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	requestID := generateRequestID()
	start := time.Now()

	mode := query.Mode(input.Mode)
	if mode == "" {
		mode = query.ModeHybrid
	}
	topK := clampLimit(input.TopK, 10, 1, 50)
	expand := input.Expand

	results, err := s.engine.Search(ctx, input.Query, query.Options{
		Mode:   mode,
		TopK:   topK,
		Rerank: input.Rerank,
		Expand: &expand,
	})
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	output := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		output.Results = append(output.Results, ToSearchResultOutput(r))
	}

	return nil, output, nil
}

// mcpIndexHandler is the MCP SDK handler for the index tool.
func (s *Server) mcpIndexHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexInput) (
	*mcp.CallToolResult,
	IndexOutput,
	error,
) {
	dir := input.Directory
	if dir == "" {
		dir = "."
	}

	requestID := generateRequestID()
	s.logger.Info("index started", slog.String("request_id", requestID), slog.String("directory", dir))

	summary, results, err := s.engine.Index(ctx, dir)
	if err != nil {
		s.logger.Error("index failed", slog.String("request_id", requestID), slog.String("error", err.Error()))
		return nil, IndexOutput{}, MapError(err)
	}

	output := IndexOutput{
		Files:    summary.Files,
		Chunks:   summary.Chunks,
		Entities: summary.Entities,
		Edges:    summary.Edges,
	}
	for _, r := range results {
		if r.Failed() {
			output.Failed = append(output.Failed, fmt.Sprintf("%s: %s", r.Path, r.Err))
		}
	}

	s.logger.Info("index completed",
		slog.String("request_id", requestID),
		slog.Int("files", output.Files),
		slog.Int("chunks", output.Chunks))

	return nil, output, nil
}

// mcpStatusHandler is the MCP SDK handler for the status tool.
func (s *Server) mcpStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	summary, err := s.engine.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, MapError(err)
	}

	output := StatusOutput{
		Files:    summary.Files,
		Chunks:   summary.Chunks,
		Entities: summary.Entities,
		Edges:    summary.Edges,
	}
	if !summary.LastIndexed.IsZero() {
		output.LastIndexed = summary.LastIndexed.Format(time.RFC3339)
	}

	return nil, output, nil
}

// mcpClearHandler is the MCP SDK handler for the clear tool.
func (s *Server) mcpClearHandler(ctx context.Context, _ *mcp.CallToolRequest, input ClearInput) (
	*mcp.CallToolResult,
	ClearOutput,
	error,
) {
	if !input.Confirm {
		return nil, ClearOutput{}, NewInvalidParamsError("set confirm=true to clear the index")
	}

	if err := s.engine.Clear(ctx); err != nil {
		return nil, ClearOutput{}, MapError(err)
	}

	return nil, ClearOutput{Cleared: true}, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources, including the underlying engine.
func (s *Server) Close() error {
	return s.engine.Close()
}

// generateRequestID creates a unique request ID for log correlation.
func generateRequestID() string {
	return uuid.NewString()
}
