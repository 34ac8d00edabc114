package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
)

func TestStatusError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimit},
		{http.StatusUnauthorized, domain.ErrAuthInvalid},
		{http.StatusForbidden, domain.ErrForbidden},
		{http.StatusRequestEntityTooLarge, domain.ErrContextOverflow},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusBadRequest, domain.ErrInvalidInput},
		{http.StatusBadGateway, domain.ErrProviderError},
	}
	for _, tt := range tests {
		err := StatusError(tt.status, []byte(`{"error":"x"}`))
		assert.True(t, errors.Is(err, tt.want), "status %d: %v", tt.status, err)
		assert.Contains(t, err.Error(), "API error")
	}

	err := StatusError(http.StatusTeapot, []byte("short and stout"))
	assert.Equal(t, "API error 418: short and stout", err.Error())
	assert.True(t, domain.IsRetryableError(StatusError(503, nil)))
	assert.False(t, domain.IsRetryableError(StatusError(401, nil)))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Topic or presentation plan is required", ErrorMessage([]byte(`{"error":"Topic or presentation plan is required"}`)))
	assert.Equal(t, "bad key", ErrorMessage([]byte(`{"error":{"message":"bad key","type":"auth"}}`)))
	assert.Equal(t, "slow down", ErrorMessage([]byte(`{"message":"slow down"}`)))
	assert.Equal(t, "", ErrorMessage([]byte(`<html>`)))
	assert.Equal(t, "", ErrorMessage([]byte(`{}`)))
}

func TestDoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "v", r.Header.Get("X-Test"))
			w.Write([]byte(`{"ok":true}`))
		case "/get":
			assert.Empty(t, r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(strings.Repeat("x", 10000)))
		}
	}))
	defer srv.Close()

	client := NewClient(time.Second, time.Second, 5*time.Second, config.PoolConfig{})

	body, err := DoJSON(context.Background(), client, http.MethodPost, srv.URL+"/ok", []byte(`{}`), map[string]string{"X-Test": "v"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	body, err = DoJSON(context.Background(), client, http.MethodGet, srv.URL+"/get", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))

	_, err = DoJSON(context.Background(), client, http.MethodPost, srv.URL+"/denied", []byte(`{}`), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuthInvalid))
	assert.Less(t, len(err.Error()), maxErrorBody+100)
}

func TestNewPooledTransportDefaults(t *testing.T) {
	tr := NewPooledTransport(0, 0, config.PoolConfig{MaxConnsPerHost: 3})
	assert.Equal(t, defaultMaxIdleConns, tr.MaxIdleConns)
	assert.Equal(t, defaultMaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
	assert.Equal(t, 3, tr.MaxConnsPerHost)
	assert.Equal(t, defaultIdleConnTimeout, tr.IdleConnTimeout)
	assert.Zero(t, tr.ResponseHeaderTimeout)
	assert.True(t, tr.ForceAttemptHTTP2)
}
