// Package mcp implements the Model Context Protocol (MCP) server for dotmd.
package mcp

import (
	"context"
	"errors"
	"fmt"

	derrors "github.com/dotmd/dotmd/internal/errors"
)

// Custom MCP error codes for dotmd.
const (
	// ErrCodeIndexNotFound indicates no index exists for the vault.
	ErrCodeIndexNotFound = -32001

	// ErrCodeModelMismatch indicates the index was built with a
	// different embedding model than the one configured now.
	ErrCodeModelMismatch = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeFileNotFound indicates a file no longer exists on disk.
	ErrCodeFileNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrResourceNotFound indicates the requested resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors, mapping
// *derrors.DotmdError by error code and falling back to a handful of
// sentinel/context cases for everything else.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var dotErr *derrors.DotmdError
	if errors.As(err, &dotErr) {
		return mapDotmdError(dotErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{Code: ErrCodeInvalidParams, Message: "Invalid parameters."}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Resource not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown methods/tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Resource '%s' not found.", uri)}
}

// mapDotmdError converts a *derrors.DotmdError to an MCPError by its
// error code (spec §7), falling back to category for anything new.
func mapDotmdError(de *derrors.DotmdError) *MCPError {
	message := de.Message
	if de.Suggestion != "" {
		message = fmt.Sprintf("%s %s", de.Message, de.Suggestion)
	}

	switch de.Code {
	case derrors.CodeIndexMissing:
		return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
	case derrors.CodeModelMismatch:
		return &MCPError{Code: ErrCodeModelMismatch, Message: message}
	case derrors.CodeCancelled:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case derrors.CodeReadError:
		return &MCPError{Code: ErrCodeFileNotFound, Message: message}
	}

	switch de.Category {
	case derrors.CategoryConfig:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
