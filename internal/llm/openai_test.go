package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProviderComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Welcome, Alice."}}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 5, "total_tokens": 25}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProviderWithBaseURL("sk-test", srv.URL+"/v1")
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Model:       "gpt-4o-mini",
		Messages:    UserPrompt("Say hello to Alice"),
		MaxTokens:   400,
		Temperature: 0.9,
		TopP:        0.9,
	})
	require.NoError(t, err)
	require.Equal(t, "Welcome, Alice.", resp.Text)
	require.Equal(t, 25, resp.TotalTokens)
	require.Contains(t, resp.Raw, "chatcmpl-1")
	require.Equal(t, "gpt-4o-mini", got["model"])
	require.EqualValues(t, 400, got["max_tokens"])
}

func TestOpenAIProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProviderWithBaseURL("sk-bad", srv.URL+"/v1")
	_, err := p.Complete(context.Background(), CompletionRequest{Model: "gpt-4o-mini", Messages: UserPrompt("x")})
	require.Error(t, err)
}
