// Package search answers queries against an ingested store: nearest-fragment
// retrieval and retrieval-augmented answers from a chat model.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/kura/internal/embedding"
	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/storage"
	"go.uber.org/zap"
)

// NoContext is sent to the model in place of fragments when retrieval finds nothing.
const NoContext = "No relevant documents found."

const systemPromptTemplate = "You are a helpful AI assistant with access to a knowledge base. " +
	"Use the following context to answer the user's question. " +
	"If the context doesn't contain relevant information, say so politely.\n\nContext:\n%s"

// ErrNoLLM is returned by Ask when the engine has no chat model.
var ErrNoLLM = errors.New("no LLM configured")

// Chatter generates a reply from a system prompt and a user message.
type Chatter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Engine runs retrieval and question answering.
type Engine struct {
	store    storage.Storage
	embedder embedding.Embedder
	llm      Chatter
	logger   *zap.Logger
}

// NewEngine creates an engine. llm may be nil when only retrieval is needed.
func NewEngine(store storage.Storage, embedder embedding.Embedder, llm Chatter, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, embedder: embedder, llm: llm, logger: logger}
}

// CheckModel fails with storage.ErrModelMismatch when the store was indexed
// with a different embedding model than the engine's embedder. An empty
// store passes.
func (e *Engine) CheckModel(ctx context.Context) error {
	meta, err := e.store.GetMetaInfo(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if meta == nil || meta.EmbeddingModel == "" {
		return nil
	}
	if meta.EmbeddingModel != e.embedder.ModelName() {
		return fmt.Errorf("%w: store uses %q, embedder is %q",
			storage.ErrModelMismatch, meta.EmbeddingModel, e.embedder.ModelName())
	}
	return nil
}

// Retrieve embeds query and returns the closest fragments.
func (e *Engine) Retrieve(ctx context.Context, query string, limit int) (*models.SearchResponse, error) {
	start := time.Now()
	q := &models.SearchQuery{Query: strings.TrimSpace(query), Limit: limit}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	vec, err := e.embedder.Embed(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("failed to generate embedding for query")
	}

	hits, err := e.store.SearchSimilar(ctx, vec, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	if hits == nil {
		hits = []*models.SimilarFragment{}
	}
	e.logger.Debug("retrieved fragments",
		zap.String("query", q.Query),
		zap.Int("limit", q.Limit),
		zap.Int("hits", len(hits)))

	return &models.SearchResponse{
		Query:     q.Query,
		Results:   hits,
		Total:     len(hits),
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

// Ask retrieves context for question and asks the chat model to answer it.
func (e *Engine) Ask(ctx context.Context, question string, limit int) (*models.Answer, error) {
	if e.llm == nil {
		return nil, ErrNoLLM
	}
	resp, err := e.Retrieve(ctx, question, limit)
	if err != nil {
		return nil, err
	}

	reply, err := e.llm.Chat(ctx, SystemPrompt(resp.Results), resp.Query)
	if err != nil {
		return nil, err
	}
	return &models.Answer{
		Question: resp.Query,
		Answer:   reply,
		Sources:  resp.Results,
	}, nil
}

// SystemPrompt builds the system message from retrieved fragments.
func SystemPrompt(fragments []*models.SimilarFragment) string {
	body := NoContext
	if len(fragments) > 0 {
		parts := make([]string, len(fragments))
		for i, f := range fragments {
			parts[i] = f.Content
		}
		body = strings.Join(parts, "\n\n")
	}
	return fmt.Sprintf(systemPromptTemplate, body)
}
