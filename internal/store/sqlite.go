package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/claridoc/internal/chunk"
)

// SQLiteIndex implements LexicalIndex using an in-memory SQLite FTS5 table
// ranked by bm25().
type SQLiteIndex struct {
	mu        sync.RWMutex
	db        *sql.DB
	passages  map[string]chunk.Passage
	stopWords map[string]struct{}
	closed    bool
}

var _ LexicalIndex = (*SQLiteIndex)(nil)

// NewSQLiteIndex opens an in-memory FTS5 index.
func NewSQLiteIndex() (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	idx := &SQLiteIndex{
		db:        db,
		passages:  make(map[string]chunk.Passage),
		stopWords: BuildStopWordMap(EnglishStopWords),
	}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	_, err := s.db.Exec(`
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_passages USING fts5(
		passage_id UNINDEXED,
		content,
		tokenize='porter unicode61'
	);`)
	return err
}

// Build replaces the table content with passages in one transaction.
func (s *SQLiteIndex) Build(ctx context.Context, passages []chunk.Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed("lexical index")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fts_passages`); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO fts_passages(passage_id, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer stmt.Close()

	byID := make(map[string]chunk.Passage, len(passages))
	for _, p := range passages {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Text); err != nil {
			return fmt.Errorf("failed to index passage %s: %w", p.ID, err)
		}
		byID[p.ID] = p
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
	s.passages = byID
	return nil
}

// Query matches any query term. Terms are quoted so user punctuation never
// reaches the FTS5 query parser.
func (s *SQLiteIndex) Query(ctx context.Context, text string, topK int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed("lexical index")
	}

	tokens := FilterStopWords(Tokenize(text), s.stopWords)
	if len(tokens) == 0 || topK <= 0 {
		return []Hit{}, nil
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}

	// bm25() is negative; lower is a better match.
	rows, err := s.db.QueryContext(ctx, `
		SELECT passage_id, bm25(fts_passages) AS score
		FROM fts_passages
		WHERE fts_passages MATCH ?
		ORDER BY score
		LIMIT ?`, strings.Join(quoted, " OR "), topK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if p, ok := s.passages[id]; ok {
			hits = append(hits, Hit{Passage: p, Score: -score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []Hit{}
	}
	return hits, nil
}

// Close closes the database.
func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.passages = nil
	return s.db.Close()
}
