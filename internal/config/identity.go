package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// IndexIdentity is an index's embedding model identity and dimensions plus
// its BM25 k1/b, serialized to <root>/config.json by WriteIndexIdentity.
// Engine.Index does not write this file and Engine.Search does not check
// it; the only query-time ModelMismatch is the dense retriever's
// vector-dimension check.
type IndexIdentity struct {
	EmbeddingModel string  `json:"embedding_model"`
	Dimensions     int     `json:"dimensions"`
	BM25K1         float64 `json:"bm25_k1"`
	BM25B          float64 `json:"bm25_b"`
}

// IdentityFromConfig derives the identity to freeze from the active config.
func IdentityFromConfig(c *Config) IndexIdentity {
	return IndexIdentity{
		EmbeddingModel: c.Embedding.ModelIdentity,
		Dimensions:     c.Embedding.Dimensions,
		BM25K1:         c.BM25.K1,
		BM25B:          c.BM25.B,
	}
}

// identityPath returns the config.json path under an index root.
func identityPath(root string) string {
	return filepath.Join(root, "config.json")
}

// WriteIndexIdentity writes the identity to <root>/config.json, creating
// the root if needed. The engine's indexing path does not call it.
func WriteIndexIdentity(root string, id IndexIdentity) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create index root: %w", err)
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index identity: %w", err)
	}
	return os.WriteFile(identityPath(root), data, 0o644)
}

// ReadIndexIdentity loads the frozen identity, or returns (zero, false, nil)
// if no index has ever been built at root.
func ReadIndexIdentity(root string) (IndexIdentity, bool, error) {
	data, err := os.ReadFile(identityPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return IndexIdentity{}, false, nil
		}
		return IndexIdentity{}, false, fmt.Errorf("read index identity: %w", err)
	}
	var id IndexIdentity
	if err := json.Unmarshal(data, &id); err != nil {
		return IndexIdentity{}, false, fmt.Errorf("parse index identity: %w", err)
	}
	return id, true, nil
}

// Matches reports whether the active config is compatible with the frozen
// identity of an existing index.
func (id IndexIdentity) Matches(c *Config) bool {
	return id.EmbeddingModel == c.Embedding.ModelIdentity && id.Dimensions == c.Embedding.Dimensions
}
