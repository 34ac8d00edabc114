package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidecoffee/internal/infra/config"
)

func TestInitServer(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store.Path = ":memory:"
	cfg.LLM.DefaultProvider = "openai"
	cfg.LLM.Providers = []config.ProviderConfig{{Name: "openai", Type: "openai", Model: "gpt-4o-mini", APIKey: "sk-test"}}
	cfg.Server.Auth.Tokens = []config.TokenConfig{{Token: "tok", UserID: "u1", WorkspaceID: "w1"}}

	srv, cleanup, err := initServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ts := httptest.NewServer(srv.Handler(ctx))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/presentations/missing", nil)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInitServerUnknownDefault(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store.Path = ":memory:"
	cfg.LLM.DefaultProvider = "missing"

	_, _, err := initServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "default llm provider")
}
