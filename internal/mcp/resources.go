package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MaxResourceSize is the maximum file size for resources (1MB).
const MaxResourceSize = 1024 * 1024

// RegisterResources loads every indexed file and registers it as an MCP
// resource. Call this once after NewServer and before Serve.
func (s *Server) RegisterResources(ctx context.Context) error {
	files, err := s.engine.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	for _, path := range files {
		s.registerFileResource(path)
	}

	s.logger.Info("registered resources", "count", len(files))
	return nil
}

// registerFileResource registers a single indexed file as an MCP resource.
func (s *Server) registerFileResource(path string) {
	uri := fmt.Sprintf("file://%s", path)
	size := int64(0)
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	s.mcp.AddResource(
		&mcp.Resource{
			Name:        filepath.Base(path),
			URI:         uri,
			Description: fmt.Sprintf("%s (%s)", path, humanSize(size)),
			MIMEType:    MimeTypeForPath(path),
		},
		s.makeFileHandler(path),
	)
}

// makeFileHandler creates a read handler for a specific, already-validated
// indexed file path.
func (s *Server) makeFileHandler(path string) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.handleReadResource(ctx, path)
	}
}

// handleReadResource reads file content, rejecting anything the metadata
// store doesn't recognize as an indexed file.
func (s *Server) handleReadResource(ctx context.Context, path string) (*mcp.ReadResourceResult, error) {
	if !s.engine.IsIndexedFile(ctx, path) {
		return nil, NewResourceNotFoundError(fmt.Sprintf("file://%s", path))
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MCPError{Code: ErrCodeFileNotFound, Message: fmt.Sprintf("file not found: %s", path)}
		}
		return nil, MapError(err)
	}
	if info.Size() > MaxResourceSize {
		return nil, NewInvalidParamsError(fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), MaxResourceSize))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      fmt.Sprintf("file://%s", path),
				MIMEType: MimeTypeForPath(path),
				Text:     string(content),
			},
		},
	}, nil
}

// humanSize formats bytes as a human-readable string.
func humanSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
