package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/kura/internal/config"
	"github.com/hyperjump/kura/internal/models"
)

// New opens the backend selected by cfg and initializes it.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	var (
		s   Storage
		err error
	)
	switch cfg.Backend {
	case BackendSQLite, "":
		s, err = NewSQLiteStorage(cfg.DatabasePath)
	case BackendMemory:
		s = NewMemoryStorage()
	case BackendPostgres:
		s, err = NewPostgresStorage(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// DiskPaths returns the files a backend keeps on local disk, for usage reporting.
func DiskPaths(cfg config.StorageConfig) []string {
	if cfg.Backend == BackendSQLite || cfg.Backend == "" {
		return []string{cfg.DatabasePath, cfg.DatabasePath + "-wal", cfg.DatabasePath + "-shm"}
	}
	return nil
}

// Stats collects the counts, meta record and disk usage reported by status.
func Stats(ctx context.Context, s Storage, cfg config.StorageConfig) (*models.Status, error) {
	status := &models.Status{Backend: cfg.Backend}
	if status.Backend == "" {
		status.Backend = BackendSQLite
	}
	if meta, err := s.GetMetaInfo(ctx); err == nil {
		status.Meta = meta
	}
	var err error
	if status.Documents, err = s.CountDocuments(ctx); err != nil {
		return nil, err
	}
	if status.Fragments, err = s.CountFragments(ctx); err != nil {
		return nil, err
	}
	if status.PendingEmbeddings, err = s.CountFragmentsWithoutEmbeddings(ctx); err != nil {
		return nil, err
	}
	if paths := DiskPaths(cfg); len(paths) > 0 {
		if n, err := DiskUsageBytes(paths...); err == nil {
			status.DiskUsageBytes = n
		}
	}
	return status, nil
}
