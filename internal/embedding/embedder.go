// Package embedding turns fragment texts into vectors. Backends are a
// deterministic mock, any OpenAI-compatible HTTP API, and a local ONNX model.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/config"
)

// Provider names accepted by New.
const (
	ProviderMock   = "mock"
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
)

// ErrCountMismatch is returned when a backend answers a batch with a
// different number of vectors than it was given texts.
var ErrCountMismatch = errors.New("embedding count mismatch")

// Embedder produces vector embeddings for text.
//
// EmbedBatch returns exactly one vector per input, in input order. An empty
// vector means that text could not be embedded; an error means the whole
// batch failed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// ModelName identifies the embedding space. Stores refuse vectors from a different model.
	ModelName() string
	Close() error
}

// New builds the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case ProviderMock, "":
		return NewMockEmbedder(cfg.Dimensions), nil
	case ProviderOpenAI:
		e, err := NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey(),
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			Timeout:           cfg.Timeout(),
			RequestsPerSecond: cfg.RequestsPerSecond,
			CacheSize:         cfg.CacheSize,
		}, logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	case ProviderONNX:
		e, err := NewONNXEmbedder(ONNXConfig{
			ModelPath:  cfg.ModelPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
			CacheSize:  cfg.CacheSize,
		}, logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
