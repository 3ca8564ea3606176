package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type capturedRequest struct {
	Path          string
	Authorization string
	Body          struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
}

func completionServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			captured.Path = r.URL.Path
			captured.Authorization = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&captured.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: baseURL, APIKey: "gaia-key", Model: "llama70b", Timeout: 5 * time.Second}, discard)
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{APIKey: "k"}, discard)
	assert.Error(t, err)
	_, err = NewClient(Config{BaseURL: "http://x"}, discard)
	assert.Error(t, err)
}

func TestRequestCompletion_Success(t *testing.T) {
	var got capturedRequest
	content := "Sure!\n<tool_call>\n{\"id\": 0, \"name\": \"get_balance\"}\n</tool_call>"
	body, _ := json.Marshal(map[string]interface{}{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "llama70b",
		"choices": []map[string]interface{}{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			{"index": 1, "message": map[string]string{"role": "assistant", "content": "ignored"}},
		},
	})
	server := completionServer(t, http.StatusOK, string(body), &got)
	defer server.Close()

	c := newTestClient(t, server.URL+"/v1/")
	text, err := c.RequestCompletion(context.Background(), "What is my balance?", "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	require.NoError(t, err)
	assert.Equal(t, content, text)

	assert.Equal(t, "/v1/chat/completions", got.Path)
	assert.Equal(t, "Bearer gaia-key", got.Authorization)
	assert.Equal(t, "llama70b", got.Body.Model)
	assert.False(t, got.Body.Stream)
	require.Len(t, got.Body.Messages, 2)
	assert.Equal(t, "system", got.Body.Messages[0].Role)
	assert.Equal(t, SystemPrompt, got.Body.Messages[0].Content)
	assert.Equal(t, "user", got.Body.Messages[1].Role)
	assert.Equal(t, "What is my balance?", got.Body.Messages[1].Content)
}

func TestRequestCompletion_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"Server Error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, http.StatusInternalServerError},
		{"Unauthorized Plain Body", http.StatusUnauthorized, `unauthorized`, http.StatusUnauthorized},
		{"No Choices", http.StatusOK, `{"choices":[]}`, 0},
		{"Choice Without Message", http.StatusOK, `{"choices":[{}]}`, 0},
		{"Empty Content", http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":""}}]}`, 0},
		{"Not JSON", http.StatusOK, `<html>gateway</html>`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := completionServer(t, tt.status, tt.body, nil)
			defer server.Close()

			c := newTestClient(t, server.URL)
			text, err := c.RequestCompletion(context.Background(), "hi", "")
			assert.Empty(t, text)

			var cerr *CompletionError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.wantStatus, cerr.StatusCode)
		})
	}
}

func TestRequestCompletion_MissingMessage(t *testing.T) {
	server := completionServer(t, http.StatusOK, `{"choices":[{}]}`, nil)
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.RequestCompletion(context.Background(), "What is my balance?", "")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestRequestCompletion_Unreachable(t *testing.T) {
	server := completionServer(t, http.StatusOK, `{}`, nil)
	url := server.URL
	server.Close()

	c := newTestClient(t, url)
	_, err := c.RequestCompletion(context.Background(), "hi", "")

	var cerr *CompletionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 0, cerr.StatusCode)
}

func TestPing(t *testing.T) {
	server := completionServer(t, http.StatusOK, `{"object":"list","data":[{"id":"llama70b","object":"model"}]}`, nil)
	defer server.Close()

	c := newTestClient(t, server.URL)
	assert.NoError(t, c.Ping(context.Background()))
}
