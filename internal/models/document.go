// Package models defines core data structures for documents, fragments, and retrieval results.
package models

import "time"

// SchemaVersion is recorded in the meta record of every store.
const SchemaVersion = "1.0.0"

// Document is one ingested source file. Data holds the raw bytes and is only
// populated when a single document is fetched.
type Document struct {
	ID        string    `json:"id" db:"id"`
	Filename  string    `json:"filename" db:"filename"`
	FilePath  string    `json:"file_path" db:"file_path"`
	Format    string    `json:"format" db:"file_type"`
	Size      int64     `json:"size" db:"size"`
	Data      []byte    `json:"-" db:"file_data"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Fragment is one chunk of a document's extracted text. Order is zero-based
// and contiguous within a document.
type Fragment struct {
	ID           string    `json:"id" db:"id"`
	DocumentID   string    `json:"document_id" db:"document_id"`
	Order        int       `json:"order" db:"fragment_order"`
	Content      string    `json:"content" db:"content"`
	HasEmbedding bool      `json:"has_embedding"`
	Embedding    []float32 `json:"-" db:"embedding"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// PendingFragment is a fragment still waiting for its embedding.
type PendingFragment struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// MetaInfo is the immutable (version, embedding model) pair of a store.
type MetaInfo struct {
	Version        string `json:"version"`
	EmbeddingModel string `json:"embedding_model"`
}
