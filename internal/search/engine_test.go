package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kura/internal/embedding"
	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/storage"
)

type fakeChat struct {
	system, user string
	reply        string
	err          error
}

func (f *fakeChat) Chat(ctx context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

var corpus = []string{
	"Machine learning algorithms learn from data.",
	"The recipe calls for two cups of flour.",
	"Go channels synchronize goroutines.",
}

func seededStore(t *testing.T, emb embedding.Embedder) *storage.MemoryStorage {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.VerifyOrSetModel(ctx, emb.ModelName()))

	docID, err := store.StoreDocument(ctx, "/docs/notes.txt", []byte(strings.Join(corpus, " ")))
	require.NoError(t, err)
	for i, text := range corpus {
		fid, err := store.StoreTextFragment(ctx, docID, i, text)
		require.NoError(t, err)
		vec, err := emb.Embed(ctx, text)
		require.NoError(t, err)
		require.NoError(t, store.UpdateFragmentEmbedding(ctx, fid, vec))
	}
	return store
}

func TestEngine_Retrieve(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	engine := NewEngine(seededStore(t, emb), emb, nil, nil)

	resp, err := engine.Retrieve(context.Background(), "  "+corpus[2]+" ", 2)
	require.NoError(t, err)
	assert.Equal(t, corpus[2], resp.Query)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, corpus[2], resp.Results[0].Content)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-5)
	assert.GreaterOrEqual(t, resp.Results[0].Score, resp.Results[1].Score)
}

func TestEngine_Retrieve_clampsLimit(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	engine := NewEngine(seededStore(t, emb), emb, nil, nil)

	resp, err := engine.Retrieve(context.Background(), "flour", 0)
	require.NoError(t, err)
	assert.Len(t, resp.Results, len(corpus))
}

func TestEngine_Retrieve_emptyQuery(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	engine := NewEngine(storage.NewMemoryStorage(), emb, nil, nil)

	_, err := engine.Retrieve(context.Background(), "   ", 5)
	assert.Error(t, err)
}

func TestEngine_Retrieve_emptyStore(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	engine := NewEngine(storage.NewMemoryStorage(), emb, nil, nil)

	resp, err := engine.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestEngine_Ask(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	chat := &fakeChat{reply: "They learn from data."}
	engine := NewEngine(seededStore(t, emb), emb, chat, nil)

	answer, err := engine.Ask(context.Background(), corpus[0], 1)
	require.NoError(t, err)
	assert.Equal(t, "They learn from data.", answer.Answer)
	assert.Equal(t, corpus[0], answer.Question)
	require.Len(t, answer.Sources, 1)

	assert.Equal(t, corpus[0], chat.user)
	assert.True(t, strings.HasPrefix(chat.system, "You are a helpful AI assistant with access to a knowledge base."))
	assert.True(t, strings.HasSuffix(chat.system, "Context:\n"+corpus[0]))
}

func TestEngine_Ask_errors(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	store := seededStore(t, emb)

	_, err := NewEngine(store, emb, nil, nil).Ask(context.Background(), "q", 1)
	assert.ErrorIs(t, err, ErrNoLLM)

	boom := errors.New("boom")
	_, err = NewEngine(store, emb, &fakeChat{err: boom}, nil).Ask(context.Background(), "q", 1)
	assert.ErrorIs(t, err, boom)
}

func TestSystemPrompt(t *testing.T) {
	empty := SystemPrompt(nil)
	assert.True(t, strings.HasSuffix(empty, "Context:\n"+NoContext))

	joined := SystemPrompt([]*models.SimilarFragment{{Content: "a"}, {Content: "b"}})
	assert.True(t, strings.HasSuffix(joined, "Context:\na\n\nb"))
	assert.Contains(t, joined, "say so politely.\n\n")
}

func TestEngine_CheckModel(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewMockEmbedder(16)

	assert.NoError(t, NewEngine(storage.NewMemoryStorage(), emb, nil, nil).CheckModel(ctx))
	assert.NoError(t, NewEngine(seededStore(t, emb), emb, nil, nil).CheckModel(ctx))

	other := embedding.NewMockEmbedder(8)
	err := NewEngine(seededStore(t, emb), other, nil, nil).CheckModel(ctx)
	assert.ErrorIs(t, err, storage.ErrModelMismatch)
}
