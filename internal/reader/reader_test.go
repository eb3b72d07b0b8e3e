package reader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func drain(t *testing.T, ch <-chan Result) []Result {
	t.Helper()
	var results []Result
	for r := range ch {
		results = append(results, r)
	}
	return results
}

func TestReader_ScanFindsMarkdownOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# Title\n\nbody")
	writeFile(t, dir, "notes.markdown", "no heading here")
	writeFile(t, dir, "ignore.txt", "not markdown")

	r := New(DefaultOptions())
	ch, err := r.Scan(context.Background(), dir)
	require.NoError(t, err)

	results := drain(t, ch)
	require.Len(t, results, 2)
	for _, res := range results {
		require.NoError(t, res.Err)
	}
}

func TestReader_ScanExcludesDotGit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# A")
	writeFile(t, dir, ".git/b.md", "# should be skipped")

	r := New(DefaultOptions())
	ch, err := r.Scan(context.Background(), dir)
	require.NoError(t, err)

	results := drain(t, ch)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].File.Title)
}

func TestReader_TitleFallsBackToFilenameStem(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "no-heading.md", "just some body text")

	r := New(DefaultOptions())
	ch, err := r.Scan(context.Background(), dir)
	require.NoError(t, err)

	results := drain(t, ch)
	require.Len(t, results, 1)
	assert.Equal(t, "no-heading", results[0].File.Title)
}

func TestReader_HeadingInsideFenceIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fenced.md", "```\n# not a title\n```\n\n# Real Title\n")

	r := New(DefaultOptions())
	ch, err := r.Scan(context.Background(), dir)
	require.NoError(t, err)

	results := drain(t, ch)
	require.Len(t, results, 1)
	assert.Equal(t, "Real Title", results[0].File.Title)
}

func TestReader_ChecksumStableAcrossScans(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# A\n\nsame content")

	r := New(DefaultOptions())

	ch1, err := r.Scan(context.Background(), dir)
	require.NoError(t, err)
	first := drain(t, ch1)

	ch2, err := r.Scan(context.Background(), dir)
	require.NoError(t, err)
	second := drain(t, ch2)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].File.Checksum, second[0].File.Checksum)
}

func TestReader_ScanNonexistentRootErrors(t *testing.T) {
	r := New(DefaultOptions())
	_, err := r.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
