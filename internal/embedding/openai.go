package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxOpenAIBatch is the largest input list sent in one request.
const maxOpenAIBatch = 100

// OpenAIConfig configures an OpenAI-compatible embeddings client.
type OpenAIConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	Dimensions        int
	Timeout           time.Duration
	RequestsPerSecond float64
	CacheSize         int
	HTTPClient        *http.Client
}

// OpenAIEmbedder calls POST {base_url}/embeddings. It works against OpenAI
// and compatible servers such as Ollama or LM Studio.
type OpenAIEmbedder struct {
	cfg     OpenAIConfig
	client  *http.Client
	limiter *rate.Limiter
	cache   *EmbeddingCache
	logger  *zap.Logger
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAIEmbedder validates cfg and returns a client.
func NewOpenAIEmbedder(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIKey == "" && strings.Contains(cfg.BaseURL, "api.openai.com") {
		return nil, errors.New("API key is required for api.openai.com")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &OpenAIEmbedder{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
		cache:   NewEmbeddingCache(cfg.CacheSize),
		logger:  logger,
	}, nil
}

// Embed embeds a single text. An empty result is an error here because the
// caller asked for exactly one vector.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, errors.New("embedding service returned no vector")
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts, serving repeats from the cache and sending the
// rest in requests of at most maxOpenAIBatch inputs.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, text := range texts {
		if vec, ok := e.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		slots = append(slots, i)
	}

	for start := 0; start < len(missing); start += maxOpenAIBatch {
		end := min(start+maxOpenAIBatch, len(missing))
		vecs, err := e.request(ctx, missing[start:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			out[slots[start+j]] = vec
			e.cache.Set(missing[start+j], vec)
		}
	}
	return out, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(embeddingRequest{Input: texts, Model: e.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	started := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, preview(data))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", preview(data), err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embedding API error: %s", parsed.Error.Message)
	}

	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d texts, got %d embeddings", ErrCountMismatch, len(texts), len(parsed.Data))
	}
	// Every index must appear exactly once. An entry with an empty embedding
	// stays empty and marks that text as unembeddable.
	vecs := make([][]float32, len(texts))
	seen := make([]bool, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(texts) || seen[d.Index] {
			return nil, fmt.Errorf("%w: invalid or repeated index %d", ErrCountMismatch, d.Index)
		}
		seen[d.Index] = true
		vecs[d.Index] = d.Embedding
	}
	e.logger.Debug("embedding batch done",
		zap.Int("texts", len(texts)),
		zap.Int("returned", len(parsed.Data)),
		zap.Duration("took", time.Since(started)))
	return vecs, nil
}

// Dimensions returns the configured vector length.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// ModelName returns the remote model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.cfg.Model
}

// Close releases idle connections.
func (e *OpenAIEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func preview(b []byte) string {
	const limit = 200
	s := string(b)
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
