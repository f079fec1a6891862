package watcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/indexer"
)

// IndexHandler feeds watch events into an Indexer. New files go through
// Phase 1 and, when they produced fragments, Phase 2. A path that is already
// stored is left alone, and removals are only logged: stored documents are
// deleted by the operator, never by the watcher.
type IndexHandler struct {
	idx    *indexer.Indexer
	logger *zap.Logger
}

// NewIndexHandler returns a Handler backed by idx.
func NewIndexHandler(idx *indexer.Indexer, logger *zap.Logger) *IndexHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexHandler{idx: idx, logger: logger}
}

func (h *IndexHandler) FileChanged(ctx context.Context, path string) {
	res := h.idx.IngestFile(ctx, path)
	switch res.Status {
	case indexer.StatusFailed:
		h.logger.Warn("ingest failed", zap.String("path", path), zap.Error(res.Err))
		return
	case indexer.StatusSkippedExists:
		h.logger.Debug("already stored, delete it to ingest the new contents", zap.String("path", path))
		return
	}
	h.logger.Info("file ingested",
		zap.String("path", path),
		zap.String("status", string(res.Status)),
		zap.Int("fragments", res.Fragments))
	if res.Fragments == 0 {
		return
	}
	if _, err := h.idx.EmbedPending(ctx); err != nil {
		h.logger.Warn("embedding failed", zap.String("path", path), zap.Error(err))
	}
}

func (h *IndexHandler) FileRemoved(_ context.Context, path string) {
	h.logger.Info("watched file removed, stored document kept", zap.String("path", path))
}
