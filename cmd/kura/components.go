package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/config"
	"github.com/hyperjump/kura/internal/embedding"
	"github.com/hyperjump/kura/internal/extract"
	"github.com/hyperjump/kura/internal/indexer"
	"github.com/hyperjump/kura/internal/llm"
	"github.com/hyperjump/kura/internal/search"
	"github.com/hyperjump/kura/internal/storage"
)

// Components holds the wired services a command works with.
type Components struct {
	Storage  storage.Storage
	Embedder embedding.Embedder
	Indexer  *indexer.Indexer
	Engine   *search.Engine
}

type componentOptions struct {
	// existingStore refuses to create a new SQLite database.
	existingStore bool
	// withLLM wires the chat client into the engine.
	withLLM     bool
	indexerOpts []indexer.Option
}

// Close releases resources.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts componentOptions) (*Components, error) {
	if opts.existingStore {
		if err := requireDatabase(cfg.Storage); err != nil {
			return nil, err
		}
	}
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	c := &Components{Storage: store}

	emb, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = emb

	chunker, err := indexer.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		c.Close()
		return nil, err
	}
	extractor := extract.NewExtractor(extract.Config{
		MaxFileSize:   cfg.Ingest.MaxFileSize,
		MaxTextLength: cfg.Ingest.MaxTextLength,
		TempDir:       cfg.Ingest.TempDir,
	}, extract.WithLogger(logger))
	idxOpts := append([]indexer.Option{indexer.WithLogger(logger)}, opts.indexerOpts...)
	c.Indexer = indexer.NewIndexer(store, emb, extractor, chunker, indexer.Config{
		BatchSize:  cfg.Ingest.BatchSize,
		BatchDelay: cfg.Ingest.BatchDelay(),
	}, idxOpts...)

	var chat search.Chatter
	if opts.withLLM {
		client, err := llm.New(cfg.LLM, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		chat = client
	}
	c.Engine = search.NewEngine(store, emb, chat, logger)
	return c, nil
}

// requireDatabase fails when the configured SQLite file does not exist, so
// query commands do not silently create an empty store.
func requireDatabase(cfg config.StorageConfig) error {
	if cfg.Backend != storage.BackendSQLite && cfg.Backend != "" {
		return nil
	}
	if _, err := os.Stat(cfg.DatabasePath); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("database file does not exist: %s", cfg.DatabasePath)
	}
	return nil
}
