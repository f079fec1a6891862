package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/vector"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		file_path TEXT NOT NULL UNIQUE,
		file_type TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		file_data BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fragments (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		fragment_order INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (document_id, fragment_order)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fragments_pending
		ON fragments(document_id, fragment_order) WHERE embedding IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at)`,
}

// SQLiteStorage implements Storage on a single SQLite file. Embeddings are
// stored as little-endian float32 blobs and ranked in process.
type SQLiteStorage struct {
	*sqlStore
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	return &SQLiteStorage{
		sqlStore: &sqlStore{
			db: db,
			d: dialect{
				schema:    sqliteSchema,
				vectorArg: func(v []float32) any { return vector.Encode(v) },
			},
		},
		path: dbPath,
	}, nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string { return s.path }

// SearchSimilar scans every embedded fragment and keeps the limit best by
// cosine similarity.
func (s *SQLiteStorage) SearchSimilar(ctx context.Context, query []float32, limit int) ([]*models.SimilarFragment, error) {
	if limit <= 0 || len(query) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM fragments WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, storageErr("search", err)
	}
	defer rows.Close()

	top := vector.NewTopK(limit)
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, storageErr("search", err)
		}
		vec, err := vector.Decode(blob)
		if err != nil {
			return nil, storageErr("decode embedding", err)
		}
		if len(vec) != len(query) {
			return nil, fmt.Errorf("%w: query has %d, fragment %s has %d", ErrDimensionMismatch, len(query), id, len(vec))
		}
		top.Push(id, vector.CosineSimilarity(query, vec))
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("search", err)
	}
	if err := rows.Close(); err != nil {
		return nil, storageErr("search", err)
	}

	results := top.Results()
	ranked := make([]rankedID, len(results))
	for i, r := range results {
		ranked[i] = rankedID{id: r.ID, score: r.Score}
	}
	return s.hydrate(ctx, ranked)
}
