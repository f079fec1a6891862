package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/hyperjump/kura/internal/models"
)

var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		file_path TEXT NOT NULL UNIQUE,
		file_type TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		file_data BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fragments (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		fragment_order INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding vector,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (document_id, fragment_order)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fragments_pending
		ON fragments(document_id, fragment_order) WHERE embedding IS NULL`,
}

// PostgresStorage implements Storage on PostgreSQL with the pgvector
// extension. Similarity is ranked by the database.
type PostgresStorage struct {
	*sqlStore
}

// NewPostgresStorage connects to dsn through the pgx database/sql driver.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &PostgresStorage{
		sqlStore: &sqlStore{
			db: db,
			d: dialect{
				schema:    postgresSchema,
				numbered:  true,
				vectorArg: func(v []float32) any { return pgvector.NewVector(v) },
			},
		},
	}, nil
}

// SearchSimilar orders by cosine distance in the database.
func (s *PostgresStorage) SearchSimilar(ctx context.Context, query []float32, limit int) ([]*models.SimilarFragment, error) {
	if limit <= 0 || len(query) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, content, 1 - (embedding <=> $1) AS score
		FROM fragments
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1, id
		LIMIT $2`, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, storageErr("search", err)
	}
	defer rows.Close()

	var out []*models.SimilarFragment
	for rows.Next() {
		var f models.SimilarFragment
		if err := rows.Scan(&f.FragmentID, &f.DocumentID, &f.Content, &f.Score); err != nil {
			return nil, storageErr("search", err)
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("search", err)
	}
	return out, nil
}
