package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxpilot/internal/agent"
)

type captured struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func server(t *testing.T, status int, content string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		if got != nil {
			assert.NoError(t, json.Unmarshal(body, got))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func client(srv *httptest.Server) openai.Client {
	return openai.NewClient(
		option.WithBaseURL(srv.URL+"/"),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
}

func TestClient_Complete(t *testing.T) {
	var got captured
	srv := server(t, http.StatusOK, "  It is sunny.  ", &got)
	c := New(client(srv), Options{Model: "gpt-test"})

	reply, err := c.Complete(context.Background(), agent.CompletionRequest{
		System: "be brief",
		Screen: "Foreground app: com.android.settings",
		History: []agent.ConversationTurn{
			{Role: agent.RoleUser, Text: "hi"},
			{Role: agent.RoleAssistant, Text: "hello"},
		},
		User: "weather?",
	})
	require.NoError(t, err)
	assert.Equal(t, "It is sunny.", reply)

	assert.Equal(t, "gpt-test", got.Model)
	var roles, contents []string
	for _, m := range got.Messages {
		roles = append(roles, m.Role)
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"system", "system", "user", "assistant", "user"}, roles)
	assert.Equal(t, []string{
		"be brief",
		"Current screen:\nForeground app: com.android.settings",
		"hi", "hello", "weather?",
	}, contents)
}

func TestClient_EmptyReply(t *testing.T) {
	srv := server(t, http.StatusOK, "   ", nil)
	_, err := New(client(srv), Options{}).Complete(context.Background(), agent.CompletionRequest{User: "x"})
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestClient_HTTPError(t *testing.T) {
	srv := server(t, http.StatusServiceUnavailable, "", nil)
	_, err := New(client(srv), Options{}).Complete(context.Background(), agent.CompletionRequest{User: "x"})
	require.Error(t, err)

	var apiErr *openai.Error
	assert.ErrorAs(t, err, &apiErr)
}
