package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/config"
	"github.com/hyperjump/kura/internal/vector"
)

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()

	a, err := e.Embed(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, a, 16)
	assert.InDelta(t, 1.0, vector.L2Norm(a), 1e-5)

	again, err := e.Embed(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, a, again)

	batch, err := e.EmbedBatch(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, a, batch[0])
	assert.NotEqual(t, batch[0], batch[1])

	assert.Equal(t, "mock-16", e.ModelName())
	assert.Equal(t, 384, NewMockEmbedder(0).Dimensions())
}

func TestNew(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: ProviderMock, Dimensions: 8}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, e.Dimensions())

	e, err = New(config.EmbeddingConfig{Provider: ProviderOpenAI, Model: "nomic-embed-text", BaseURL: "http://localhost:11434/v1"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", e.ModelName())

	_, err = New(config.EmbeddingConfig{Provider: "word2vec"}, nil)
	assert.Error(t, err)
}

type fakeEmbeddingServer struct {
	requests atomic.Int32
	inputs   atomic.Int32
	// drop lists input positions to leave out of the response.
	drop map[int]bool
	// empty lists input positions answered with an empty embedding.
	empty map[int]bool
	// repeat lists input positions answered twice.
	repeat map[int]bool
}

func (f *fakeEmbeddingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	if r.URL.Path != "/embeddings" || r.Header.Get("Authorization") != "Bearer test-key" {
		http.Error(w, `{"error":{"message":"unauthorized"}}`, http.StatusUnauthorized)
		return
	}
	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.inputs.Add(int32(len(req.Input)))
	var resp embeddingResponse
	// Reverse order so the client has to place results by index.
	for i := len(req.Input) - 1; i >= 0; i-- {
		if f.drop[i] {
			continue
		}
		d := embeddingData{Index: i, Embedding: []float32{float32(len(req.Input[i])), 1}}
		if f.empty[i] {
			d.Embedding = []float32{}
		}
		resp.Data = append(resp.Data, d)
		if f.repeat[i] {
			resp.Data = append(resp.Data, d)
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestOpenAI(t *testing.T, h http.Handler, cacheSize int) *OpenAIEmbedder {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	e, err := NewOpenAIEmbedder(OpenAIConfig{
		BaseURL:   srv.URL + "/",
		APIKey:    "test-key",
		Model:     "text-embedding-3-small",
		CacheSize: cacheSize,
	}, zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestOpenAIEmbedder_EmbedBatchPlacesByIndex(t *testing.T) {
	fake := &fakeEmbeddingServer{}
	e := newTestOpenAI(t, fake, 0)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bbb", "cc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{1, 1}, vecs[0])
	assert.Equal(t, []float32{3, 1}, vecs[1])
	assert.Equal(t, []float32{2, 1}, vecs[2])
	assert.Equal(t, int32(1), fake.requests.Load())
}

func TestOpenAIEmbedder_EmptyEntryStaysEmpty(t *testing.T) {
	fake := &fakeEmbeddingServer{empty: map[int]bool{1: true}}
	e := newTestOpenAI(t, fake, 0)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.NotEmpty(t, vecs[0])
	assert.Empty(t, vecs[1])
	assert.NotEmpty(t, vecs[2])
}

func TestOpenAIEmbedder_ShortResponseIsCountMismatch(t *testing.T) {
	fake := &fakeEmbeddingServer{drop: map[int]bool{1: true}}
	e := newTestOpenAI(t, fake, 0)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestOpenAIEmbedder_RepeatedIndexIsCountMismatch(t *testing.T) {
	// Index 0 answered twice and index 1 dropped keeps the length right.
	fake := &fakeEmbeddingServer{drop: map[int]bool{1: true}, repeat: map[int]bool{0: true}}
	e := newTestOpenAI(t, fake, 0)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestOpenAIEmbedder_SplitsLargeBatches(t *testing.T) {
	fake := &fakeEmbeddingServer{}
	e := newTestOpenAI(t, fake, 0)

	texts := make([]string, maxOpenAIBatch+5)
	for i := range texts {
		texts[i] = "t"
	}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, len(texts))
	assert.Equal(t, int32(2), fake.requests.Load())
}

func TestOpenAIEmbedder_CacheServesRepeats(t *testing.T) {
	fake := &fakeEmbeddingServer{}
	e := newTestOpenAI(t, fake, 10)
	ctx := context.Background()

	_, err := e.EmbedBatch(ctx, []string{"one", "two"})
	require.NoError(t, err)
	vecs, err := e.EmbedBatch(ctx, []string{"two", "three"})
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1}, vecs[0])
	assert.Equal(t, []float32{5, 1}, vecs[1])
	assert.Equal(t, int32(3), fake.inputs.Load())
}

func TestOpenAIEmbedder_HTTPError(t *testing.T) {
	e := newTestOpenAI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}), 0)
	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestOpenAIEmbedder_APIErrorBody(t *testing.T) {
	e := newTestOpenAI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}), 0)
	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad model")
}

func TestNewOpenAIEmbedder_requiresKeyForOpenAI(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{Model: "text-embedding-3-small"}, nil)
	assert.Error(t, err)
	_, err = NewOpenAIEmbedder(OpenAIConfig{BaseURL: "http://localhost:1234/v1"}, nil)
	assert.Error(t, err)
}
