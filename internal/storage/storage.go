// Package storage persists documents, their text fragments and fragment
// embeddings, together with the meta record that pins a store to one schema
// version and one embedding model.
package storage

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kura/internal/models"
)

// Backend names accepted by New.
const (
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

const (
	metaKeyVersion = "version"
	metaKeyModel   = "embedding_model"
)

// Storage defines document and fragment persistence.
//
// Implementations are safe for concurrent use. Every document path is unique
// within a store, and fragments of one document carry the contiguous orders
// they were stored with.
type Storage interface {
	// Initialize creates the schema if absent and records or checks the schema version.
	Initialize(ctx context.Context) error
	// VerifyOrSetModel records the embedding model on first use and rejects any other model afterwards.
	VerifyOrSetModel(ctx context.Context, model string) error
	GetMetaInfo(ctx context.Context) (*models.MetaInfo, error)

	// Document operations
	DocumentExists(ctx context.Context, path string) (bool, error)
	StoreDocument(ctx context.Context, path string, data []byte) (string, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	FindDocumentByPath(ctx context.Context, path string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// Fragment operations
	StoreTextFragment(ctx context.Context, documentID string, order int, content string) (string, error)
	GetFragmentsByDocumentID(ctx context.Context, documentID string) ([]*models.Fragment, error)
	UpdateFragmentEmbedding(ctx context.Context, fragmentID string, embedding []float32) error
	GetFragmentsWithoutEmbeddings(ctx context.Context, limit int) ([]models.PendingFragment, error)
	SearchSimilar(ctx context.Context, query []float32, limit int) ([]*models.SimilarFragment, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountFragments(ctx context.Context) (int64, error)
	CountFragmentsWithoutEmbeddings(ctx context.Context) (int64, error)

	Close() error
}

// fileType is the lowercased extension without its dot, as recorded on documents.
func fileType(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
