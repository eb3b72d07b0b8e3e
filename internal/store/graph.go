package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/dotmd/dotmd/internal/model"
)

// sqlGraphStore persists the property graph of spec §3 in SQLite,
// grounded on `mvp-joe-project-cortex/internal/storage/graph_writer.go`'s
// transaction-per-write, squirrel-builder pattern, generalized from a
// code call-graph schema to File/Section/Entity/Tag nodes plus the seven
// spec edge kinds.
type sqlGraphStore struct {
	db *sql.DB
}

const graphSchema = `
CREATE TABLE IF NOT EXISTS graph_files (
	path  TEXT PRIMARY KEY,
	title TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sections (
	id        TEXT PRIMARY KEY,
	file_path TEXT NOT NULL,
	level     INTEGER NOT NULL,
	heading   TEXT NOT NULL,
	parent_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_sections_file ON sections(file_path);
CREATE TABLE IF NOT EXISTS entities (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tags (
	id  TEXT PRIMARY KEY,
	raw TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS edges (
	kind      TEXT NOT NULL,
	from_kind TEXT NOT NULL,
	from_id   TEXT NOT NULL,
	to_kind   TEXT NOT NULL,
	to_id     TEXT NOT NULL,
	key       TEXT NOT NULL DEFAULT '',
	value     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_kind, from_id);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_kind, to_id);
CREATE TABLE IF NOT EXISTS section_chunks (
	section_id TEXT NOT NULL,
	chunk_id   TEXT NOT NULL,
	PRIMARY KEY (section_id, chunk_id)
);
CREATE INDEX IF NOT EXISTS idx_section_chunks_section ON section_chunks(section_id);
`

// NewGraphStore opens (creating if needed) the graph store at path.
func NewGraphStore(path string) (GraphStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open graph db: %w", err)
	}
	if _, err := db.Exec(graphSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create graph schema: %w", err)
	}
	return &sqlGraphStore{db: db}, nil
}

func (s *sqlGraphStore) UpsertFile(ctx context.Context, file *model.File) error {
	_, err := sq.Insert("graph_files").Columns("path", "title").
		Values(file.Path, file.Title).
		Suffix("ON CONFLICT(path) DO UPDATE SET title=excluded.title").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("upsert file node %s: %w", file.Path, err)
	}
	return nil
}

func (s *sqlGraphStore) UpsertSection(ctx context.Context, sec *model.Section) error {
	_, err := sq.Insert("sections").
		Columns("id", "file_path", "level", "heading", "parent_id").
		Values(sec.ID, sec.FilePath, sec.Level, sec.Heading, nullIfEmpty(sec.ParentID)).
		Suffix("ON CONFLICT(id) DO UPDATE SET file_path=excluded.file_path, level=excluded.level, heading=excluded.heading, parent_id=excluded.parent_id").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("upsert section %s: %w", sec.ID, err)
	}
	return nil
}

func (s *sqlGraphStore) UpsertEntity(ctx context.Context, e *model.Entity) error {
	_, err := sq.Insert("entities").Columns("id", "name", "type").
		Values(e.ID, e.Name, string(e.Type)).
		Suffix("ON CONFLICT(id) DO NOTHING").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("upsert entity %s: %w", e.ID, err)
	}
	return nil
}

func (s *sqlGraphStore) UpsertTag(ctx context.Context, t *model.Tag) error {
	_, err := sq.Insert("tags").Columns("id", "raw").
		Values(t.ID, t.Raw).
		Suffix("ON CONFLICT(id) DO NOTHING").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("upsert tag %s: %w", t.ID, err)
	}
	return nil
}

func (s *sqlGraphStore) UpsertEdges(ctx context.Context, edges []model.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, e := range edges {
		_, err := sq.Insert("edges").
			Columns("kind", "from_kind", "from_id", "to_kind", "to_id", "key", "value").
			Values(string(e.Kind), string(e.FromKind), e.FromID, string(e.ToKind), e.ToID, e.Key, e.Value).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("insert edge %s: %w", e.Kind, err)
		}
	}
	return tx.Commit()
}

func (s *sqlGraphStore) DeleteFileLinks(ctx context.Context, filePath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := sq.Select("id").From("sections").Where(sq.Eq{"file_path": filePath}).RunWith(tx).QueryContext(ctx)
	if err != nil {
		return fmt.Errorf("select sections for %s: %w", filePath, err)
	}
	var sectionIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		sectionIDs = append(sectionIDs, id)
	}
	rows.Close()

	if len(sectionIDs) > 0 {
		if _, err := sq.Delete("edges").Where(sq.Or{
			sq.Eq{"from_kind": "section", "from_id": sectionIDs},
			sq.Eq{"to_kind": "section", "to_id": sectionIDs},
		}).RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("delete section edges for %s: %w", filePath, err)
		}
		if _, err := sq.Delete("section_chunks").Where(sq.Eq{"section_id": sectionIDs}).RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("delete section_chunks for %s: %w", filePath, err)
		}
	}

	if _, err := sq.Delete("edges").Where(sq.Or{
		sq.Eq{"from_kind": "file", "from_id": filePath},
		sq.Eq{"to_kind": "file", "to_id": filePath},
	}).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("delete file edges for %s: %w", filePath, err)
	}

	return tx.Commit()
}

func (s *sqlGraphStore) DeleteFileStructure(ctx context.Context, filePath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := sq.Delete("sections").Where(sq.Eq{"file_path": filePath}).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("delete sections for %s: %w", filePath, err)
	}
	if _, err := sq.Delete("graph_files").Where(sq.Eq{"path": filePath}).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("delete file node for %s: %w", filePath, err)
	}

	return tx.Commit()
}

func (s *sqlGraphStore) LinkSectionChunks(ctx context.Context, sectionID string, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, chunkID := range chunkIDs {
		_, err := sq.Insert("section_chunks").Columns("section_id", "chunk_id").
			Values(sectionID, chunkID).
			Suffix("ON CONFLICT(section_id, chunk_id) DO NOTHING").
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("link section %s to chunk %s: %w", sectionID, chunkID, err)
		}
	}
	return tx.Commit()
}

func (s *sqlGraphStore) SectionChunks(ctx context.Context, sectionIDs []string) (map[string][]string, error) {
	result := make(map[string][]string)
	if len(sectionIDs) == 0 {
		return result, nil
	}
	rows, err := sq.Select("section_id", "chunk_id").From("section_chunks").
		Where(sq.Eq{"section_id": sectionIDs}).RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select section_chunks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sectionID, chunkID string
		if err := rows.Scan(&sectionID, &chunkID); err != nil {
			return nil, err
		}
		result[sectionID] = append(result[sectionID], chunkID)
	}
	return result, rows.Err()
}

// Traverse implements the graph retriever's bounded-hop BFS (spec §4.6):
// up to maxHops edges of the given kinds from the seed set, in either
// direction (edges are treated as undirected for traversal purposes,
// since e.g. a MENTIONS edge should let a query seeded on an entity reach
// back to the section that mentions it).
func (s *sqlGraphStore) Traverse(ctx context.Context, seeds []model.NodeRef, kinds []model.EdgeKind, maxHops int) ([]model.TraversalHit, error) {
	if len(seeds) == 0 || maxHops <= 0 {
		return nil, nil
	}

	kindStrs := make([]string, len(kinds))
	for i, k := range kinds {
		kindStrs[i] = string(k)
	}

	visited := make(map[string]bool, len(seeds))
	frontier := make([]model.NodeRef, 0, len(seeds))
	for _, seed := range seeds {
		key := string(seed.Kind) + ":" + seed.ID
		if !visited[key] {
			visited[key] = true
			frontier = append(frontier, seed)
		}
	}

	var hits []model.TraversalHit
	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		var next []model.NodeRef
		for _, node := range frontier {
			neighbors, err := s.neighbors(ctx, node, kindStrs)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				key := string(n.Node.Kind) + ":" + n.Node.ID
				hits = append(hits, model.TraversalHit{Node: n.Node, EdgeKind: n.Kind, Hops: hop})
				if !visited[key] {
					visited[key] = true
					next = append(next, n.Node)
				}
			}
		}
		frontier = next
	}

	return hits, nil
}

type neighborEdge struct {
	Node model.NodeRef
	Kind model.EdgeKind
}

func (s *sqlGraphStore) neighbors(ctx context.Context, node model.NodeRef, kinds []string) ([]neighborEdge, error) {
	var out []neighborEdge

	forward, err := sq.Select("kind", "to_kind", "to_id").From("edges").
		Where(sq.Eq{"from_kind": string(node.Kind), "from_id": node.ID, "kind": kinds}).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select forward edges: %w", err)
	}
	for forward.Next() {
		var kind, toKind, toID string
		if err := forward.Scan(&kind, &toKind, &toID); err != nil {
			forward.Close()
			return nil, err
		}
		out = append(out, neighborEdge{Node: model.NodeRef{Kind: model.NodeKind(toKind), ID: toID}, Kind: model.EdgeKind(kind)})
	}
	forward.Close()

	backward, err := sq.Select("kind", "from_kind", "from_id").From("edges").
		Where(sq.Eq{"to_kind": string(node.Kind), "to_id": node.ID, "kind": kinds}).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select backward edges: %w", err)
	}
	for backward.Next() {
		var kind, fromKind, fromID string
		if err := backward.Scan(&kind, &fromKind, &fromID); err != nil {
			backward.Close()
			return nil, err
		}
		out = append(out, neighborEdge{Node: model.NodeRef{Kind: model.NodeKind(fromKind), ID: fromID}, Kind: model.EdgeKind(kind)})
	}
	backward.Close()

	return out, nil
}

func (s *sqlGraphStore) Stats(ctx context.Context) (entities, edges int, err error) {
	if err = sq.Select("COUNT(*)").From("entities").RunWith(s.db).QueryRowContext(ctx).Scan(&entities); err != nil {
		return 0, 0, fmt.Errorf("count entities: %w", err)
	}
	if err = sq.Select("COUNT(*)").From("edges").RunWith(s.db).QueryRowContext(ctx).Scan(&edges); err != nil {
		return 0, 0, fmt.Errorf("count edges: %w", err)
	}
	return entities, edges, nil
}

func (s *sqlGraphStore) Close() error {
	return s.db.Close()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ GraphStore = (*sqlGraphStore)(nil)
