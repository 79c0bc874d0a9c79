package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwlim/gonggo/internal/llm"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, requests *[]chatRequest, replies []string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*requests = append(*requests, req)

		i := len(*requests) - 1
		require.Less(t, i, len(replies), "more requests than scripted replies")
		_, _ = fmt.Fprintf(w,
			`{"choices": [{"message": {"role": "assistant", "content": %q}}]}`, replies[i])
	}))
}

func TestGenerateAndSendReplayHistory(t *testing.T) {
	var requests []chatRequest
	srv := chatServer(t, &requests, []string{"first answer", "corrected answer"})
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"}, nil)

	reply, conv, err := client.Generate(context.Background(), llm.Request{
		System: "system text",
		User:   []llm.Content{{Text: "user text"}, {PNG: []byte{1, 2, 3}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "first answer", reply.Text)
	assert.NotEmpty(t, reply.Raw)

	reply, err = conv.Send(context.Background(), "please fix it")
	require.NoError(t, err)
	assert.Equal(t, "corrected answer", reply.Text)

	require.Len(t, requests, 2)
	assert.Equal(t, "test-model", requests[0].Model)
	require.Len(t, requests[0].Messages, 2) // system + user

	// The correction turn replays the whole history, malformed answer
	// included.
	second := requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, "system", second[0].Role)
	assert.Equal(t, "user", second[1].Role)
	assert.Equal(t, "assistant", second[2].Role)
	assert.JSONEq(t, `"first answer"`, string(second[2].Content))
	assert.Equal(t, "user", second[3].Role)
	assert.JSONEq(t, `"please fix it"`, string(second[3].Content))
}

func TestGenerateRejectsPDFContent(t *testing.T) {
	client := NewClient(Config{APIKey: "test-key"}, nil)
	_, _, err := client.Generate(context.Background(), llm.Request{
		User: []llm.Content{{PDF: []byte("%PDF-1.7")}},
	})
	require.Error(t, err)
	assert.False(t, client.AcceptsPDF())
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"}, nil)
	_, _, err := client.Generate(context.Background(), llm.Request{
		User: []llm.Content{{Text: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	assert.Equal(t, "gpt-4.1-mini", cfg.Model)
	assert.NotZero(t, cfg.Timeout)
}
