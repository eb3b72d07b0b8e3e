// Package errors provides the structured error type for dotmd.
//
// Error codes map 1:1 onto the error kinds of the hybrid retrieval core:
// read, parse, and write failures during ingestion, and fatal query-path
// failures (model mismatch, missing index, cancellation, bad config).
package errors

// Category classifies an error for dispatch and reporting.
type Category string

const (
	CategoryIngest Category = "INGEST"
	CategoryQuery  Category = "QUERY"
	CategoryConfig Category = "CONFIG"
)

// Severity indicates how the caller should react.
type Severity string

const (
	// SeverityFatal aborts the current index or search call immediately.
	SeverityFatal Severity = "FATAL"
	// SeverityRecoverable is reported and the batch continues.
	SeverityRecoverable Severity = "RECOVERABLE"
)

// Error codes, one per spec §7 kind.
const (
	// CodeReadError is an I/O failure reading a source file. Recovered
	// locally: skip the file, continue the batch.
	CodeReadError = "ERR_READ"

	// CodeParseError is malformed frontmatter or similar. Recovered
	// locally: treat as opaque text, continue.
	CodeParseError = "ERR_PARSE"

	// CodeIndexWriteError is a failure in a backing store during
	// ingestion. Rolls back the current file, continues the batch.
	CodeIndexWriteError = "ERR_INDEX_WRITE"

	// CodeModelMismatch: index built with a different embedding model
	// than configured at query time. Fatal.
	CodeModelMismatch = "ERR_MODEL_MISMATCH"

	// CodeIndexMissing: query called before any successful index. Fatal.
	CodeIndexMissing = "ERR_INDEX_MISSING"

	// CodeCancelled: deadline exceeded. Fatal for that call.
	CodeCancelled = "ERR_CANCELLED"

	// CodeConfigError: invalid configuration. Fatal at startup.
	CodeConfigError = "ERR_CONFIG"

	// CodeInternal wraps an error from outside this package that has no
	// more specific code (used only by the formatting helpers).
	CodeInternal = "ERR_INTERNAL"
)

func categoryFromCode(code string) Category {
	switch code {
	case CodeModelMismatch, CodeIndexMissing, CodeCancelled:
		return CategoryQuery
	case CodeConfigError:
		return CategoryConfig
	default:
		return CategoryIngest
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case CodeModelMismatch, CodeIndexMissing, CodeCancelled, CodeConfigError, CodeInternal:
		return SeverityFatal
	default:
		return SeverityRecoverable
	}
}

func isRetryableCode(code string) bool {
	return code == CodeCancelled
}
