package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
)

func TestAnthropicProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ant-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "You are a presentation expert. Return only valid JSON.", req.System)
		assert.Equal(t, 2048, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "text", req.Messages[0].Content[0].Type)

		json.NewEncoder(w).Encode(anthropicResponse{
			ID:    "msg_1",
			Model: "claude-test",
			Role:  "assistant",
			Content: []anthropicContent{
				{Type: "text", Text: `{"title":`},
				{Type: "text", Text: `"Go"}`},
			},
			Usage: anthropicUsage{InputTokens: 12, OutputTokens: 5},
		})
	}))
	defer server.Close()

	p := NewAnthropicProvider(config.ProviderConfig{
		Name:    "claude",
		Type:    "anthropic",
		BaseURL: server.URL,
		APIKey:  "ant-key",
		Model:   "claude-test",
	}, newTestLogger())

	resp, err := p.Chat(context.Background(), outlineRequest())
	require.NoError(t, err)
	assert.Equal(t, "msg_1", resp.ID)
	assert.Equal(t, `{"title":"Go"}`, resp.Message.Content)
	assert.Equal(t, 17, resp.Usage.TotalTokens)
	assert.Equal(t, "claude", p.Name())
}

func TestAnthropicProviderForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"type":"error","error":{"type":"permission_error","message":"denied"}}`))
	}))
	defer server.Close()

	p := NewAnthropicProvider(config.ProviderConfig{Name: "claude", BaseURL: server.URL, APIKey: "k"}, newTestLogger())
	_, err := p.Chat(context.Background(), outlineRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	assert.Contains(t, err.Error(), "denied")
}

func TestToAnthropicRequest(t *testing.T) {
	req := toAnthropicRequest(domain.ChatRequest{
		Model: "m",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "a"},
			{Role: domain.RoleSystem, Content: "b"},
			{Role: "tool", Content: "c"},
			{Role: domain.RoleAssistant, Content: "d"},
		},
	})
	assert.Equal(t, "a\n\nb", req.System)
	assert.Equal(t, defaultAnthropicMaxTokens, req.MaxTokens)
	assert.Nil(t, req.Temperature)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, domain.RoleUser, req.Messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, req.Messages[1].Role)
}

func TestFromAnthropicResponseSkipsNonText(t *testing.T) {
	resp := fromAnthropicResponse(anthropicResponse{
		Content: []anthropicContent{{Type: "thinking"}, {Type: "text", Text: "hi"}},
	})
	assert.Equal(t, "hi", resp.Message.Content)
}
