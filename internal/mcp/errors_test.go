package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/dotmd/dotmd/internal/errors"
)

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_DotmdError_IndexMissing(t *testing.T) {
	err := derrors.IndexMissing("no index found; run index() first")

	mapped := MapError(err)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeIndexNotFound, mapped.Code)
	assert.Contains(t, mapped.Message, "no index found")
}

func TestMapError_DotmdError_ModelMismatch(t *testing.T) {
	err := derrors.ModelMismatch("index built with a different embedding model")

	mapped := MapError(err)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeModelMismatch, mapped.Code)
}

func TestMapError_DotmdError_ReadError(t *testing.T) {
	err := derrors.ReadError("failed to read notes.md", errors.New("permission denied"))

	mapped := MapError(err)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeFileNotFound, mapped.Code)
}

func TestMapError_DotmdError_WithSuggestion(t *testing.T) {
	err := derrors.IndexMissing("no index found").WithSuggestion("run 'dotmd index' first")

	mapped := MapError(err)
	require.NotNil(t, mapped)
	assert.Contains(t, mapped.Message, "run 'dotmd index' first")
}

func TestMapError_ContextDeadlineExceeded(t *testing.T) {
	mapped := MapError(context.DeadlineExceeded)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeTimeout, mapped.Code)
}

func TestMapError_ContextCanceled(t *testing.T) {
	mapped := MapError(context.Canceled)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeTimeout, mapped.Code)
}

func TestMapError_SentinelErrors(t *testing.T) {
	assert.Equal(t, ErrCodeMethodNotFound, MapError(ErrToolNotFound).Code)
	assert.Equal(t, ErrCodeInvalidParams, MapError(ErrInvalidParams).Code)
	assert.Equal(t, ErrCodeMethodNotFound, MapError(ErrResourceNotFound).Code)
}

func TestMapError_UnknownError(t *testing.T) {
	mapped := MapError(errors.New("something unexpected"))
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeInternalError, mapped.Code)
}

func TestMCPError_Error(t *testing.T) {
	e := &MCPError{Code: ErrCodeInvalidParams, Message: "bad input"}
	assert.Contains(t, e.Error(), "bad input")
	assert.Contains(t, e.Error(), "-32602")
}

func TestNewInvalidParamsError(t *testing.T) {
	e := NewInvalidParamsError("query is required")
	assert.Equal(t, ErrCodeInvalidParams, e.Code)
	assert.Equal(t, "query is required", e.Message)
}

func TestNewMethodNotFoundError(t *testing.T) {
	e := NewMethodNotFoundError("bogus")
	assert.Equal(t, ErrCodeMethodNotFound, e.Code)
	assert.Contains(t, e.Message, "bogus")
}

func TestNewResourceNotFoundError(t *testing.T) {
	e := NewResourceNotFoundError("file:///nope.md")
	assert.Equal(t, ErrCodeMethodNotFound, e.Code)
	assert.Contains(t, e.Message, "file:///nope.md")
}
