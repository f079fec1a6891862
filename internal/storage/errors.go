package storage

import (
	"errors"
	"fmt"

	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/vector"
)

var (
	// ErrStorage wraps failures of the underlying database.
	ErrStorage = errors.New("storage error")
	// ErrNotFound is returned when a document or fragment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDocumentExists is returned when a path has already been stored.
	ErrDocumentExists = errors.New("document already exists")
	// ErrModelMismatch is returned when a store is opened with a different embedding model.
	ErrModelMismatch = errors.New("embedding model mismatch")
	// ErrVersionMismatch is returned when a store was created by another schema version.
	ErrVersionMismatch = errors.New("schema version mismatch")
	// ErrDimensionMismatch is returned when a query and stored vectors differ in length.
	ErrDimensionMismatch = vector.ErrDimensionMismatch
	// ErrEmptyEmbedding is returned when an empty vector is written to a fragment.
	ErrEmptyEmbedding = errors.New("empty embedding")
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func checkModel(stored, requested string) error {
	if stored != requested {
		return fmt.Errorf("%w: store uses %q, requested %q", ErrModelMismatch, stored, requested)
	}
	return nil
}

func checkVersion(stored string) error {
	if stored != "" && stored != models.SchemaVersion {
		return fmt.Errorf("%w: store has %s, expected %s", ErrVersionMismatch, stored, models.SchemaVersion)
	}
	return nil
}
