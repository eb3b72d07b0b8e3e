package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// sqliteBM25Index is a hand-rolled BM25 index persisted in plain SQLite
// tables (not FTS5): term postings, per-document lengths, and the corpus
// totals BM25 needs for IDF. Grounded on
// `Aman-CERP-amanmcp/internal/store/sqlite_bm25.go`'s persistence shape
// (pure-Go `modernc.org/sqlite`, WAL mode, transactional batch writes), but
// the scoring itself is computed in Go with the spec's explicit k1/b rather
// than delegated to FTS5's `bm25()` ranking function — FTS5's signature only
// exposes per-column weights, not k1/b, so it cannot honor the configurable,
// frozen-into-the-index-identity scoring parameters spec §6 requires.
// Content is tokenized with tokenizeProse, a prose word-splitter, rather
// than the teacher's code-aware camelCase/snake_case splitter.
type sqliteBM25Index struct {
	mu        sync.RWMutex
	db        *sql.DB
	config    BM25Config
	closed    bool
	stopWords map[string]struct{}
}

var _ BM25Index = (*sqliteBM25Index)(nil)

const bm25Schema = `
CREATE TABLE IF NOT EXISTS bm25_postings (
	term     TEXT NOT NULL,
	chunk_id TEXT NOT NULL,
	tf       INTEGER NOT NULL,
	PRIMARY KEY (term, chunk_id)
);
CREATE INDEX IF NOT EXISTS idx_bm25_postings_term ON bm25_postings(term);
CREATE INDEX IF NOT EXISTS idx_bm25_postings_chunk ON bm25_postings(chunk_id);
CREATE TABLE IF NOT EXISTS bm25_doc_lengths (
	chunk_id TEXT PRIMARY KEY,
	length   INTEGER NOT NULL
);
`

// NewBM25Index opens (creating if needed) the sparse index at path. An
// empty path opens an in-memory index, used by tests.
func NewBM25Index(path string, config BM25Config) (BM25Index, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create bm25 index dir: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open bm25 index: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(bm25Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bm25 schema: %w", err)
	}

	return &sqliteBM25Index{
		db:        db,
		config:    config,
		stopWords: buildStopWordSet(config.StopWords),
	}, nil
}

func (s *sqliteBM25Index) tokenize(text string) []string {
	return tokenizeProse(text, s.config.MinTokenLength, s.stopWords)
}

func (s *sqliteBM25Index) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("bm25 index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	delPostings, err := tx.PrepareContext(ctx, `DELETE FROM bm25_postings WHERE chunk_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete postings: %w", err)
	}
	defer delPostings.Close()

	insPosting, err := tx.PrepareContext(ctx,
		`INSERT INTO bm25_postings(term, chunk_id, tf) VALUES (?, ?, ?)
		 ON CONFLICT(term, chunk_id) DO UPDATE SET tf = excluded.tf`)
	if err != nil {
		return fmt.Errorf("prepare insert posting: %w", err)
	}
	defer insPosting.Close()

	insLength, err := tx.PrepareContext(ctx,
		`INSERT INTO bm25_doc_lengths(chunk_id, length) VALUES (?, ?)
		 ON CONFLICT(chunk_id) DO UPDATE SET length = excluded.length`)
	if err != nil {
		return fmt.Errorf("prepare insert length: %w", err)
	}
	defer insLength.Close()

	for _, doc := range docs {
		tokens := s.tokenize(doc.Text)

		if _, err := delPostings.ExecContext(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete existing postings for %s: %w", doc.ID, err)
		}

		termFreq := make(map[string]int, len(tokens))
		for _, t := range tokens {
			termFreq[t]++
		}
		for term, tf := range termFreq {
			if _, err := insPosting.ExecContext(ctx, term, doc.ID, tf); err != nil {
				return fmt.Errorf("index posting %q for %s: %w", term, doc.ID, err)
			}
		}
		if _, err := insLength.ExecContext(ctx, doc.ID, len(tokens)); err != nil {
			return fmt.Errorf("index length for %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// Search scores every candidate chunk (any chunk sharing at least one query
// term) with the spec's BM25 formula:
//
//	score(D,Q) = Σ_t idf(t) * tf(t,D)*(k1+1) / (tf(t,D) + k1*(1-b+b*|D|/avgdl))
//	idf(t)     = ln(1 + (N - df(t) + 0.5) / (df(t) + 0.5))
func (s *sqliteBM25Index) Search(ctx context.Context, query string, limit int) ([]BM25Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("bm25 index is closed")
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	tokens := s.tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	n, avgdl, err := s.corpusStats(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	termFreq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		termFreq[t]++
	}

	scores := make(map[string]float64)
	lengths := make(map[string]int)
	for term := range termFreq {
		df, postings, err := s.termPostings(ctx, term)
		if err != nil {
			return nil, err
		}
		if df == 0 {
			continue
		}
		idf := idfBM25(n, df)
		for chunkID, tf := range postings {
			if _, ok := lengths[chunkID]; !ok {
				l, err := s.docLength(ctx, chunkID)
				if err != nil {
					return nil, err
				}
				lengths[chunkID] = l
			}
			docLen := float64(lengths[chunkID])
			denom := float64(tf) + s.config.K1*(1-s.config.B+s.config.B*docLen/avgdl)
			scores[chunkID] += idf * (float64(tf) * (s.config.K1 + 1)) / denom
		}
	}

	results := make([]BM25Result, 0, len(scores))
	for chunkID, score := range scores {
		results = append(results, BM25Result{ChunkID: chunkID, Score: score})
	}
	sortResultsDescending(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func idfBM25(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

func sortResultsDescending(results []BM25Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}

func (s *sqliteBM25Index) corpusStats(ctx context.Context) (n int, avgdl float64, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(AVG(length), 0) FROM bm25_doc_lengths`)
	if err := row.Scan(&n, &avgdl); err != nil {
		return 0, 0, fmt.Errorf("corpus stats: %w", err)
	}
	if avgdl == 0 {
		avgdl = 1
	}
	return n, avgdl, nil
}

func (s *sqliteBM25Index) termPostings(ctx context.Context, term string) (df int, postings map[string]int, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id, tf FROM bm25_postings WHERE term = ?`, term)
	if err != nil {
		return 0, nil, fmt.Errorf("query postings for %q: %w", term, err)
	}
	defer rows.Close()

	postings = make(map[string]int)
	for rows.Next() {
		var chunkID string
		var tf int
		if err := rows.Scan(&chunkID, &tf); err != nil {
			return 0, nil, err
		}
		postings[chunkID] = tf
	}
	return len(postings), postings, rows.Err()
}

func (s *sqliteBM25Index) docLength(ctx context.Context, chunkID string) (int, error) {
	var length int
	err := s.db.QueryRowContext(ctx, `SELECT length FROM bm25_doc_lengths WHERE chunk_id = ?`, chunkID).Scan(&length)
	if err != nil {
		return 0, fmt.Errorf("doc length for %s: %w", chunkID, err)
	}
	return length, nil
}

func (s *sqliteBM25Index) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("bm25 index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(chunkIDs))
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	in := strings.Join(placeholders, ",")

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM bm25_postings WHERE chunk_id IN (%s)", in), args...); err != nil {
		return fmt.Errorf("delete postings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM bm25_doc_lengths WHERE chunk_id IN (%s)", in), args...); err != nil {
		return fmt.Errorf("delete doc lengths: %w", err)
	}
	return tx.Commit()
}

func (s *sqliteBM25Index) AllIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("bm25 index is closed")
	}

	rows, err := s.db.Query(`SELECT chunk_id FROM bm25_doc_lengths ORDER BY chunk_id`)
	if err != nil {
		return nil, fmt.Errorf("query bm25 ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteBM25Index) Stats() IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return IndexStats{}
	}
	n, avgdl, err := s.corpusStats(context.Background())
	if err != nil {
		return IndexStats{}
	}
	var terms int
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT term) FROM bm25_postings`).Scan(&terms); err != nil {
		return IndexStats{DocumentCount: n}
	}
	return IndexStats{DocumentCount: n, TermCount: terms, AvgDocLength: avgdl}
}

// Save forces a WAL checkpoint; the SQLite tables otherwise persist
// automatically on each transaction commit.
func (s *sqliteBM25Index) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("bm25 index is closed")
	}
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

func (s *sqliteBM25Index) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil && !s.closed {
		s.db.Close()
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open bm25 index: %w", err)
	}
	s.db = db
	s.closed = false
	return nil
}

func (s *sqliteBM25Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}
