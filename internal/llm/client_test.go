package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/kura/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("KURA_TEST_LLM_KEY", "secret")
	c, err := New(config.LLMConfig{
		Endpoint:       srv.URL,
		APIKeyEnv:      "KURA_TEST_LLM_KEY",
		Model:          "gpt-4",
		MaxTokens:      1000,
		Temperature:    0.7,
		TimeoutSeconds: 5,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestChat(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"forty-two"}}]}`))
	})

	answer, err := c.Chat(context.Background(), "be brief", "meaning of life?")
	require.NoError(t, err)
	assert.Equal(t, "forty-two", answer)

	assert.Equal(t, "gpt-4", got.Model)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, Message{Role: "system", Content: "be brief"}, got.Messages[0])
	assert.Equal(t, Message{Role: "user", Content: "meaning of life?"}, got.Messages[1])
}

func TestChat_httpError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	_, err := c.Chat(context.Background(), "", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestChat_apiErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
	})
	_, err := c.Chat(context.Background(), "", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestChat_noChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err := c.Chat(context.Background(), "", "hi")
	assert.True(t, errors.Is(err, ErrNoChoices))
}

func TestNew_validation(t *testing.T) {
	_, err := New(config.LLMConfig{Model: "m"}, nil)
	assert.Error(t, err)
	_, err = New(config.LLMConfig{Endpoint: "http://x"}, nil)
	assert.Error(t, err)
}
