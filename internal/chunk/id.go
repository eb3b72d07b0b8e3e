package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// generateChunkID derives a deterministic chunk ID from the file path and
// the chunk's ordinal position (spec §4.2), not from content. Unlike a
// content hash, this stays stable across re-indexing so long as a file's
// section layout doesn't shift, and is what lets seed scenario A's
// expected ID (hash of "foo.md:0") be asserted ahead of time.
func generateChunkID(filePath string, ordinal int) string {
	input := fmt.Sprintf("%s:%d", filePath, ordinal)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}

// estimateTokens approximates a token count from rune length.
func estimateTokens(content string) int {
	n := len([]rune(content)) / TokensPerChar
	if n == 0 && content != "" {
		n = 1
	}
	return n
}
