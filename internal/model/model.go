// Package model defines the shared data types of the hybrid retrieval core:
// files, chunks, sections, entities, tags, and the property-graph edges that
// connect them. Every store and pipeline stage operates on these types.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// File is a discovered Markdown document.
type File struct {
	Path      string // absolute path, primary identity
	Title     string // first H1, else filename stem
	Checksum  string // content hash
	Size      int64
	ModTime   time.Time
	IndexedAt time.Time
}

// Chunk is the unit of retrieval: a heading-scoped, token-bounded passage.
type Chunk struct {
	ID          string // hash(file_path + ":" + ordinal)
	FilePath    string
	Ordinal     int      // position within file, document order
	HeadingPath []string // ancestor headings, H1 first
	Text        string
	StartOffset int // byte offset into source
	EndOffset   int
	Tokens      int
}

// Section is a heading node in a file's heading tree.
type Section struct {
	ID       string // hash(file_path + heading_path)
	FilePath string
	Level    int // 1-6
	Heading  string
	ParentID string // empty for root
}

// EntityType is a finite, configurable tag for extracted entities.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityTechnology   EntityType = "technology"
	EntityConcept      EntityType = "concept"
	EntityLocation     EntityType = "location"
)

// Entity is a named thing extracted from a chunk, global across the corpus.
type Entity struct {
	ID   string // hash(normalized_name + type)
	Name string // canonical name
	Type EntityType
}

// Tag is a hashtag or frontmatter tag.
type Tag struct {
	ID  string // normalized string
	Raw string
}

// EdgeKind enumerates the property-graph relation types.
type EdgeKind string

const (
	EdgeHasSection     EdgeKind = "HAS_SECTION"
	EdgeParentOf       EdgeKind = "PARENT_OF"
	EdgeLinksTo        EdgeKind = "LINKS_TO"
	EdgeHasTag         EdgeKind = "HAS_TAG"
	EdgeMentions       EdgeKind = "MENTIONS"
	EdgeCoOccurs       EdgeKind = "CO_OCCURS"
	EdgeHasFrontmatter EdgeKind = "HAS_FRONTMATTER"
)

// NodeKind enumerates the node types a graph edge can reference.
type NodeKind string

const (
	NodeFile    NodeKind = "file"
	NodeSection NodeKind = "section"
	NodeEntity  NodeKind = "entity"
	NodeTag     NodeKind = "tag"
)

// Edge is a directed, typed relation between two graph nodes.
type Edge struct {
	Kind     EdgeKind
	FromKind NodeKind
	FromID   string
	ToKind   NodeKind
	ToID     string
	// Value carries the (k,v) payload for HAS_FRONTMATTER edges; empty otherwise.
	Key   string
	Value string
}

// Frontmatter is the parsed YAML header of a file, attached to the file
// rather than emitted as a chunk.
type Frontmatter map[string]string

// SectionID derives a section's identity from its owning file and its full
// heading path, so that any two chunks under the same heading resolve to
// the same Section node (spec §3: "section ID (hash of file_path + heading
// path)").
func SectionID(filePath string, headingPath []string) string {
	input := filePath + "|" + strings.Join(headingPath, ">")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}

// NormalizeEntityName case-folds and collapses whitespace, the
// normalization function entity IDs are stable under (spec §3).
func NormalizeEntityName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, " ")
}

// EntityID derives an entity's identity from its normalized name and type,
// so entities are shared by ID across the whole corpus (spec §3).
func EntityID(name string, t EntityType) string {
	input := NormalizeEntityName(name) + "|" + string(t)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}

// TagID normalizes a raw hashtag/frontmatter tag into its stable ID.
func TagID(raw string) string {
	return NormalizeEntityName(strings.TrimPrefix(raw, "#"))
}

// NodeRef identifies a node in the property graph by kind and ID, used to
// seed a graph traversal (spec §4.6).
type NodeRef struct {
	Kind NodeKind
	ID   string
}

// TraversalHit is one node reached by a graph traversal, carrying the
// kind/weight of the edge that reached it and the hop count, so the graph
// retriever can fold every path into a Σ edge_weight/hop² score.
type TraversalHit struct {
	Node     NodeRef
	EdgeKind EdgeKind
	Hops     int
}
