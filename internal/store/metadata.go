package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/dotmd/dotmd/internal/model"
)

// sqlMetadataStore is the relational `chunks`/`files` tables of spec §6,
// backed by the pure-Go `modernc.org/sqlite` driver, grounded on
// `mvp-joe-project-cortex/internal/storage/graph_writer.go`'s
// squirrel-over-*sql.DB writer style.
type sqlMetadataStore struct {
	db *sql.DB
}

const metadataSchema = `
CREATE TABLE IF NOT EXISTS files (
	path       TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	size       INTEGER NOT NULL,
	mtime      INTEGER NOT NULL,
	indexed_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	id           TEXT PRIMARY KEY,
	file_path    TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
	ordinal      INTEGER NOT NULL,
	heading_path TEXT NOT NULL,
	text         TEXT NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset   INTEGER NOT NULL,
	tokens       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);
`

// NewMetadataStore opens (creating if needed) the metadata.db at path.
func NewMetadataStore(path string) (MetadataStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(metadataSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create metadata schema: %w", err)
	}
	return &sqlMetadataStore{db: db}, nil
}

func (s *sqlMetadataStore) SaveFile(ctx context.Context, file *model.File) error {
	_, err := sq.Insert("files").
		Columns("path", "title", "checksum", "size", "mtime", "indexed_at").
		Values(file.Path, file.Title, file.Checksum, file.Size, file.ModTime.Unix(), file.IndexedAt.Unix()).
		Suffix("ON CONFLICT(path) DO UPDATE SET title=excluded.title, checksum=excluded.checksum, size=excluded.size, mtime=excluded.mtime, indexed_at=excluded.indexed_at").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("save file %s: %w", file.Path, err)
	}
	return nil
}

func (s *sqlMetadataStore) GetFile(ctx context.Context, path string) (*model.File, error) {
	row := sq.Select("path", "title", "checksum", "size", "mtime", "indexed_at").
		From("files").Where(sq.Eq{"path": path}).RunWith(s.db).QueryRowContext(ctx)
	return scanFile(row)
}

func (s *sqlMetadataStore) DeleteFile(ctx context.Context, path string) error {
	_, err := sq.Delete("files").Where(sq.Eq{"path": path}).RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete file %s: %w", path, err)
	}
	return nil
}

func (s *sqlMetadataStore) ListFiles(ctx context.Context) ([]*model.File, error) {
	rows, err := sq.Select("path", "title", "checksum", "size", "mtime", "indexed_at").
		From("files").OrderBy("path").RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []*model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *sqlMetadataStore) SaveChunks(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, c := range chunks {
		_, err := sq.Insert("chunks").
			Columns("id", "file_path", "ordinal", "heading_path", "text", "start_offset", "end_offset", "tokens").
			Values(c.ID, c.FilePath, c.Ordinal, joinHeadingPath(c.HeadingPath), c.Text, c.StartOffset, c.EndOffset, c.Tokens).
			Suffix("ON CONFLICT(id) DO UPDATE SET ordinal=excluded.ordinal, heading_path=excluded.heading_path, text=excluded.text, start_offset=excluded.start_offset, end_offset=excluded.end_offset, tokens=excluded.tokens").
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("save chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *sqlMetadataStore) GetChunk(ctx context.Context, id string) (*model.Chunk, error) {
	row := chunkSelect().Where(sq.Eq{"id": id}).RunWith(s.db).QueryRowContext(ctx)
	return scanChunk(row)
}

func (s *sqlMetadataStore) GetChunks(ctx context.Context, ids []string) ([]*model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := chunkSelect().Where(sq.Eq{"id": ids}).RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *sqlMetadataStore) GetChunksByFile(ctx context.Context, filePath string) ([]*model.Chunk, error) {
	rows, err := chunkSelect().Where(sq.Eq{"file_path": filePath}).OrderBy("ordinal").RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chunks by file: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *sqlMetadataStore) DeleteChunksByFile(ctx context.Context, filePath string) error {
	_, err := sq.Delete("chunks").Where(sq.Eq{"file_path": filePath}).RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete chunks by file %s: %w", filePath, err)
	}
	return nil
}

func (s *sqlMetadataStore) Stats(ctx context.Context) (files, chunks int, err error) {
	if err = sq.Select("COUNT(*)").From("files").RunWith(s.db).QueryRowContext(ctx).Scan(&files); err != nil {
		return 0, 0, fmt.Errorf("count files: %w", err)
	}
	if err = sq.Select("COUNT(*)").From("chunks").RunWith(s.db).QueryRowContext(ctx).Scan(&chunks); err != nil {
		return 0, 0, fmt.Errorf("count chunks: %w", err)
	}
	return files, chunks, nil
}

func (s *sqlMetadataStore) Close() error {
	return s.db.Close()
}

func chunkSelect() sq.SelectBuilder {
	return sq.Select("id", "file_path", "ordinal", "heading_path", "text", "start_offset", "end_offset", "tokens").From("chunks")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*model.File, error) {
	var f model.File
	var mtime, indexedAt int64
	if err := row.Scan(&f.Path, &f.Title, &f.Checksum, &f.Size, &mtime, &indexedAt); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	f.ModTime = time.Unix(mtime, 0).UTC()
	f.IndexedAt = time.Unix(indexedAt, 0).UTC()
	return &f, nil
}

func scanChunk(row rowScanner) (*model.Chunk, error) {
	var c model.Chunk
	var headingPath string
	if err := row.Scan(&c.ID, &c.FilePath, &c.Ordinal, &headingPath, &c.Text, &c.StartOffset, &c.EndOffset, &c.Tokens); err != nil {
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	c.HeadingPath = splitHeadingPath(headingPath)
	return &c, nil
}

func scanChunks(rows *sql.Rows) ([]*model.Chunk, error) {
	var chunks []*model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

const headingPathSep = "\x1f" // unit separator, won't collide with heading text

func joinHeadingPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += headingPathSep
		}
		out += p
	}
	return out
}

func splitHeadingPath(s string) []string {
	if s == "" {
		return nil
	}
	var path []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == headingPathSep[0] {
			path = append(path, s[start:i])
			start = i + 1
		}
	}
	path = append(path, s[start:])
	return path
}

var _ MetadataStore = (*sqlMetadataStore)(nil)
