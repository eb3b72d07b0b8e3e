package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesCategoryAndSeverity(t *testing.T) {
	err := New(CodeModelMismatch, "embedding model changed", nil)
	assert.Equal(t, CategoryQuery, err.Category)
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.False(t, err.Retryable)
}

func TestCancelledIsRetryable(t *testing.T) {
	err := Cancelled("deadline exceeded")
	assert.True(t, err.Retryable)
	assert.True(t, IsRetryable(err))
	assert.True(t, IsFatal(err))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(CodeReadError, nil))
}

func TestIsMatchesByCode(t *testing.T) {
	cause := errors.New("disk full")
	a := ReadError("cannot read foo.md", cause)
	b := &DotmdError{Code: CodeReadError}
	assert.True(t, errors.Is(a, b))

	other := ParseError("bad frontmatter", nil)
	assert.False(t, errors.Is(a, other))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	err := IndexWriteError("failed to write chunk", cause)
	require.ErrorIs(t, err, cause)
}

func TestWithDetailAndSuggestionChain(t *testing.T) {
	err := ConfigError("unknown extractor", nil).
		WithDetail("extractor", "ocr").
		WithSuggestion("use 'structural' or 'ner'")
	assert.Equal(t, "ocr", err.Details["extractor"])
	assert.Equal(t, "use 'structural' or 'ner'", err.Suggestion)
}

func TestGetCodeAndCategoryOnNonDotmdError(t *testing.T) {
	plain := errors.New("plain")
	assert.Equal(t, "", GetCode(plain))
	assert.Equal(t, Category(""), GetCategory(plain))
}
