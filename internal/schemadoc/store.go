// Package schemadoc keeps one embedded document per database table: a
// human description plus a JSON rendering of its columns. The pipeline
// retrieves the nearest documents as context for SQL generation.
package schemadoc

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/cortexai/text2sql/internal/vectorsearch"
)

// SourceName is reported as Match.SourceTable for schema documents.
const SourceName = "table_docs"

// Store persists schema documents in the table_docs table.
type Store struct {
	db         *sql.DB
	dimensions int
}

func NewStore(db *sql.DB, dimensions int) *Store {
	return &Store{db: db, dimensions: dimensions}
}

func (s *Store) Backend() string { return "pgvector" }

func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS table_docs (
	id SERIAL PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	description TEXT,
	embedding VECTOR(%d)
)`, s.dimensions),
		// Tables created without the UNIQUE constraint still need it for
		// ON CONFLICT (name).
		`CREATE UNIQUE INDEX IF NOT EXISTS table_docs_name_key ON table_docs (name)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure table_docs: %w", err)
		}
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM table_docs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count table_docs: %w", err)
	}
	return n, nil
}

// Insert stores a document unless one with the same name exists. It reports
// whether a row was written.
func (s *Store) Insert(ctx context.Context, name, doc string, embedding []float32) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO table_docs (name, description, embedding) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
		name, doc, pgvector.NewVector(embedding))
	if err != nil {
		return false, fmt.Errorf("insert table_docs %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Search returns the k documents nearest to vector. source is ignored.
func (s *Store) Search(ctx context.Context, vector []float32, k int, _ string) ([]vectorsearch.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, embedding <=> $1 AS distance
FROM table_docs
ORDER BY embedding <=> $1
LIMIT $2`, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]vectorsearch.Match, 0, k)
	for rows.Next() {
		m := vectorsearch.Match{SourceTable: SourceName}
		var desc sql.NullString
		if err := rows.Scan(&m.SourceID, &m.Name, &desc, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan table doc: %w", err)
		}
		m.Content = desc.String
		m.Similarity = 1 - m.Distance
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
