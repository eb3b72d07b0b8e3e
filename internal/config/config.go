// Package config loads the process-wide configuration for the hybrid
// retrieval core, composed the way the teacher composes it: one sub-struct
// per concern, defaults baked in, YAML file plus environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete process-wide configuration (spec §6 "Configuration").
type Config struct {
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Chunking    ChunkingConfig    `yaml:"chunking" json:"chunking"`
	Embedding   EmbeddingConfig   `yaml:"embedding" json:"embedding"`
	BM25        BM25Config        `yaml:"bm25" json:"bm25"`
	Graph       GraphConfig       `yaml:"graph" json:"graph"`
	Rerank      RerankConfig      `yaml:"rerank" json:"rerank"`
	Server      ServerConfig      `yaml:"server" json:"server"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
}

// PathsConfig is the root of the on-disk index layout (spec §6).
type PathsConfig struct {
	Root string `yaml:"root" json:"root"`
}

// ChunkingConfig configures the Markdown chunker (spec §4.2).
type ChunkingConfig struct {
	MaxTokens     int `yaml:"max_tokens" json:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens" json:"overlap_tokens"`
}

// ExtractDepth selects which extractor layers run (spec §4.3, §6).
type ExtractDepth string

const (
	ExtractStructural ExtractDepth = "structural"
	ExtractNER        ExtractDepth = "ner"
)

// EmbeddingConfig configures the embedding model identity (spec §6).
type EmbeddingConfig struct {
	ModelIdentity string       `yaml:"model_identity" json:"model_identity"`
	Dimensions    int          `yaml:"dimensions" json:"dimensions"`
	BatchSize     int          `yaml:"batch_size" json:"batch_size"`
	ExtractDepth  ExtractDepth `yaml:"extract_depth" json:"extract_depth"`
	NEREntityTypes []string    `yaml:"ner_entity_types" json:"ner_entity_types"`
}

// BM25Config freezes the sparse retriever's scoring parameters (spec §4.6).
type BM25Config struct {
	K1 float64 `yaml:"k1" json:"k1"`
	B  float64 `yaml:"b" json:"b"`
}

// GraphConfig configures the graph retriever's traversal (spec §4.6).
type GraphConfig struct {
	SeedBudget  int                `yaml:"seed_budget" json:"seed_budget"`
	MaxHops     int                `yaml:"max_hops" json:"max_hops"`
	EdgeWeights map[string]float64 `yaml:"edge_weights" json:"edge_weights"`
}

// RerankConfig configures the cross-encoder reranker (spec §4.8). The
// cross-encoder runs as a separate HTTP server (mirroring the teacher's MLX
// reranker server); Enabled gates whether the engine dials out to it at
// all, so a vault with no reranker server running still starts cleanly.
type RerankConfig struct {
	Enabled                bool    `yaml:"enabled" json:"enabled"`
	Endpoint               string  `yaml:"endpoint" json:"endpoint"`
	Model                  string  `yaml:"model" json:"model"`
	TimeoutSeconds         int     `yaml:"timeout_seconds" json:"timeout_seconds"`
	LengthPenaltyThreshold int     `yaml:"length_penalty_threshold" json:"length_penalty_threshold"`
	ScoreFloor             float64 `yaml:"score_floor" json:"score_floor"`
	DefaultTopK            int     `yaml:"default_top_k" json:"default_top_k"`
}

// ServerConfig configures the CLI/MCP bind options.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"` // "stdio" or "sse"
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// PerformanceConfig tunes the bounded ingestion worker pool (spec §5).
type PerformanceConfig struct {
	IndexWorkers int `yaml:"index_workers" json:"index_workers"`
}

// NewConfig returns the configuration with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Paths: PathsConfig{Root: DefaultRoot()},
		Chunking: ChunkingConfig{
			MaxTokens:     512,
			OverlapTokens: 50,
		},
		Embedding: EmbeddingConfig{
			ModelIdentity:  "bge-small-en-v1.5",
			Dimensions:     384,
			BatchSize:      32,
			ExtractDepth:   ExtractStructural,
			NEREntityTypes: []string{"person", "organization", "technology", "concept", "location"},
		},
		BM25: BM25Config{
			K1: 1.5,
			B:  0.75,
		},
		Graph: GraphConfig{
			SeedBudget: 20,
			MaxHops:    2,
			EdgeWeights: map[string]float64{
				"MENTIONS":    1.0,
				"CO_OCCURS":   0.8,
				"LINKS_TO":    0.6,
				"HAS_TAG":     0.4,
				"PARENT_OF":   0.3,
				"HAS_SECTION": 0.5,
			},
		},
		Rerank: RerankConfig{
			Enabled:                false,
			Endpoint:               "http://localhost:9659",
			Model:                  "reranker-small",
			TimeoutSeconds:         30,
			LengthPenaltyThreshold: 100,
			ScoreFloor:             -8.0,
			DefaultTopK:            10,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
		Performance: PerformanceConfig{
			IndexWorkers: runtime.NumCPU(),
		},
	}
}

// DefaultRoot returns the default index root (~/.dotmd/).
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".dotmd")
	}
	return filepath.Join(home, ".dotmd")
}

// Load reads configuration from <root>/config.yaml, if present, over the
// defaults, then applies DOTMD_* environment overrides, then validates.
func Load(root string) (*Config, error) {
	cfg := NewConfig()
	if root != "" {
		cfg.Paths.Root = root
	}

	path := filepath.Join(cfg.Paths.Root, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		cfg.mergeWith(&parsed)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) mergeWith(other *Config) {
	if other.Paths.Root != "" {
		c.Paths.Root = other.Paths.Root
	}
	if other.Chunking.MaxTokens != 0 {
		c.Chunking.MaxTokens = other.Chunking.MaxTokens
	}
	if other.Chunking.OverlapTokens != 0 {
		c.Chunking.OverlapTokens = other.Chunking.OverlapTokens
	}
	if other.Embedding.ModelIdentity != "" {
		c.Embedding.ModelIdentity = other.Embedding.ModelIdentity
	}
	if other.Embedding.Dimensions != 0 {
		c.Embedding.Dimensions = other.Embedding.Dimensions
	}
	if other.Embedding.BatchSize != 0 {
		c.Embedding.BatchSize = other.Embedding.BatchSize
	}
	if other.Embedding.ExtractDepth != "" {
		c.Embedding.ExtractDepth = other.Embedding.ExtractDepth
	}
	if len(other.Embedding.NEREntityTypes) > 0 {
		c.Embedding.NEREntityTypes = other.Embedding.NEREntityTypes
	}
	if other.BM25.K1 != 0 {
		c.BM25.K1 = other.BM25.K1
	}
	if other.BM25.B != 0 {
		c.BM25.B = other.BM25.B
	}
	if other.Graph.SeedBudget != 0 {
		c.Graph.SeedBudget = other.Graph.SeedBudget
	}
	if other.Graph.MaxHops != 0 {
		c.Graph.MaxHops = other.Graph.MaxHops
	}
	if len(other.Graph.EdgeWeights) > 0 {
		c.Graph.EdgeWeights = other.Graph.EdgeWeights
	}
	if other.Rerank.Enabled {
		c.Rerank.Enabled = other.Rerank.Enabled
	}
	if other.Rerank.Endpoint != "" {
		c.Rerank.Endpoint = other.Rerank.Endpoint
	}
	if other.Rerank.Model != "" {
		c.Rerank.Model = other.Rerank.Model
	}
	if other.Rerank.TimeoutSeconds != 0 {
		c.Rerank.TimeoutSeconds = other.Rerank.TimeoutSeconds
	}
	if other.Rerank.LengthPenaltyThreshold != 0 {
		c.Rerank.LengthPenaltyThreshold = other.Rerank.LengthPenaltyThreshold
	}
	if other.Rerank.ScoreFloor != 0 {
		c.Rerank.ScoreFloor = other.Rerank.ScoreFloor
	}
	if other.Rerank.DefaultTopK != 0 {
		c.Rerank.DefaultTopK = other.Rerank.DefaultTopK
	}
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Performance.IndexWorkers != 0 {
		c.Performance.IndexWorkers = other.Performance.IndexWorkers
	}
}

// applyEnvOverrides applies DOTMD_* environment variable overrides,
// mirroring the teacher's AMANMCP_* convention.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOTMD_PATHS_ROOT"); v != "" {
		c.Paths.Root = v
	}
	if v := os.Getenv("DOTMD_BM25_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.BM25.K1 = f
		}
	}
	if v := os.Getenv("DOTMD_BM25_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.BM25.B = f
		}
	}
	if v := os.Getenv("DOTMD_EMBEDDING_MODEL"); v != "" {
		c.Embedding.ModelIdentity = v
	}
	if v := os.Getenv("DOTMD_EXTRACT_DEPTH"); v != "" {
		c.Embedding.ExtractDepth = ExtractDepth(v)
	}
	if v := os.Getenv("DOTMD_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("DOTMD_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("DOTMD_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Performance.IndexWorkers = n
		}
	}
	if v := os.Getenv("DOTMD_RERANK_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Rerank.Enabled = b
		}
	}
	if v := os.Getenv("DOTMD_RERANK_ENDPOINT"); v != "" {
		c.Rerank.Endpoint = v
	}
}

// Validate checks the configuration for consistency, raising ConfigError
// conditions per spec §7 at startup.
func (c *Config) Validate() error {
	if c.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("chunking.max_tokens must be positive, got %d", c.Chunking.MaxTokens)
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return fmt.Errorf("chunking.overlap_tokens must be in [0, max_tokens), got %d", c.Chunking.OverlapTokens)
	}
	if c.Embedding.ExtractDepth != ExtractStructural && c.Embedding.ExtractDepth != ExtractNER {
		return fmt.Errorf("embedding.extract_depth must be 'structural' or 'ner', got %q", c.Embedding.ExtractDepth)
	}
	if c.BM25.K1 <= 0 {
		return fmt.Errorf("bm25.k1 must be positive, got %f", c.BM25.K1)
	}
	if c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("bm25.b must be in [0, 1], got %f", c.BM25.B)
	}
	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	if c.Rerank.Enabled && c.Rerank.Endpoint == "" {
		return fmt.Errorf("rerank.endpoint must be set when rerank.enabled is true")
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
