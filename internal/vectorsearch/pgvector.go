package vectorsearch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// Document is one piece of content to embed and store.
type Document struct {
	SourceTable string
	SourceID    int64
	Content     string
	Metadata    map[string]any
}

// Store is an Index that can also be written to.
type Store interface {
	Index
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, docs []Document, vectors [][]float32) error
}

// PGStore keeps content embeddings in the unified_embeddings table.
type PGStore struct {
	db         *sql.DB
	dimensions int
}

func NewPGStore(db *sql.DB, dimensions int) *PGStore {
	return &PGStore{db: db, dimensions: dimensions}
}

func (s *PGStore) Backend() string { return "pgvector" }

func (s *PGStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS unified_embeddings (
	id SERIAL PRIMARY KEY,
	source_table TEXT NOT NULL,
	source_id BIGINT NOT NULL,
	content TEXT NOT NULL,
	embedding VECTOR(%d),
	metadata JSONB,
	UNIQUE (source_table, source_id)
)`, s.dimensions),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure unified_embeddings: %w", err)
		}
	}
	return nil
}

const upsertEmbeddingSQL = `
INSERT INTO unified_embeddings (source_table, source_id, content, embedding, metadata)
VALUES ($1, $2, $3, $4, $5::jsonb)
ON CONFLICT (source_table, source_id)
DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`

// Upsert writes docs and their vectors in one transaction.
func (s *PGStore) Upsert(ctx context.Context, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("upsert: %d documents but %d vectors", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertEmbeddingSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, d := range docs {
		meta, err := json.Marshal(metadataOrEmpty(d.Metadata))
		if err != nil {
			return fmt.Errorf("marshal metadata for %s/%d: %w", d.SourceTable, d.SourceID, err)
		}
		if _, err := stmt.ExecContext(ctx, d.SourceTable, d.SourceID, d.Content, pgvector.NewVector(vectors[i]), string(meta)); err != nil {
			return fmt.Errorf("upsert %s/%d: %w", d.SourceTable, d.SourceID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *PGStore) Search(ctx context.Context, vector []float32, k int, source string) ([]Match, error) {
	var b strings.Builder
	b.WriteString(`SELECT source_table, source_id, content, metadata, embedding <=> $1 AS distance
FROM unified_embeddings`)
	args := []any{pgvector.NewVector(vector)}
	if source != "" {
		args = append(args, source)
		b.WriteString("\nWHERE source_table = $2")
	}
	args = append(args, k)
	fmt.Fprintf(&b, "\nORDER BY embedding <=> $1\nLIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]Match, 0, k)
	for rows.Next() {
		var m Match
		var meta []byte
		if err := rows.Scan(&m.SourceTable, &m.SourceID, &m.Content, &meta, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		m.Similarity = 1 - m.Distance
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Count reports how many embeddings are stored per source table.
func (s *PGStore) Count(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_table, COUNT(*) FROM unified_embeddings GROUP BY source_table`)
	if err != nil {
		return nil, fmt.Errorf("count embeddings: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var src string
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[src] = n
	}
	return out, rows.Err()
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
