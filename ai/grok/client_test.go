package grok

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.x.ai/v1", normalizeBaseURL("https://api.x.ai"))
	assert.Equal(t, "https://api.x.ai/v1", normalizeBaseURL("https://api.x.ai/"))
	assert.Equal(t, "https://api.x.ai/v1", normalizeBaseURL("https://api.x.ai/v1"))
	assert.Equal(t, "http://localhost:8080/v1", normalizeBaseURL("http://localhost:8080/v1/"))
}

func newCompletionServer(t *testing.T, handler func(req ChatRequest) (int, interface{})) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func replyWith(content string) ChatResponse {
	return ChatResponse{
		ID:      "cmpl-1",
		Choices: []Choice{{Message: Message{Role: "assistant", Content: content}, FinishReason: "stop"}},
		Usage:   Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

func TestClientComplete(t *testing.T) {
	srv := newCompletionServer(t, func(req ChatRequest) (int, interface{}) {
		assert.Equal(t, DefaultModel, req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		return http.StatusOK, replyWith("hello there")
	})

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"})
	reply, err := client.Complete(context.Background(), "", "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)
}

func TestClientCompleteSystemPrompt(t *testing.T) {
	srv := newCompletionServer(t, func(req ChatRequest) (int, interface{}) {
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "be terse", req.Messages[0].Content)
		return http.StatusOK, replyWith("ok")
	})

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"})
	_, err := client.Complete(context.Background(), "be terse", "hi")
	require.NoError(t, err)
}

func TestClientCompleteStatusError(t *testing.T) {
	srv := newCompletionServer(t, func(req ChatRequest) (int, interface{}) {
		return http.StatusUnauthorized, map[string]string{"error": "bad key"}
	})

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"})
	_, err := client.Complete(context.Background(), "", "hi")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.False(t, statusErr.Retryable())
}

func TestClientCompleteEmptyChoices(t *testing.T) {
	srv := newCompletionServer(t, func(req ChatRequest) (int, interface{}) {
		return http.StatusOK, ChatResponse{ID: "cmpl-2"}
	})

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"})
	_, err := client.Complete(context.Background(), "", "hi")
	assert.Error(t, err)
}

func TestClientRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Complete(context.Background(), "", "hi")
	assert.Error(t, err)
	assert.False(t, client.IsConfigured())
}

func TestStatusErrorRetryable(t *testing.T) {
	assert.True(t, (&StatusError{StatusCode: 429}).Retryable())
	assert.True(t, (&StatusError{StatusCode: 500}).Retryable())
	assert.True(t, (&StatusError{StatusCode: 503}).Retryable())
	assert.True(t, (&StatusError{StatusCode: 408}).Retryable())
	assert.False(t, (&StatusError{StatusCode: 400}).Retryable())
	assert.False(t, (&StatusError{StatusCode: 401}).Retryable())
	assert.False(t, (&StatusError{StatusCode: 404}).Retryable())
}
