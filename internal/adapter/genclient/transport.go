// Package genclient connects the streaming client to a generation server.
package genclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
	"slidecoffee/internal/infra/httpx"
	"slidecoffee/internal/usecase/stream"
)

// fallbackRejection is used when a rejected request carries no message.
const fallbackRejection = "failed to generate slides"

// HTTPTransport opens generation streams over HTTP.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPTransport creates a transport for cfg.Endpoint. The client has no
// overall timeout; a stream lives as long as its context.
func NewHTTPTransport(cfg config.ClientConfig, logger *slog.Logger) *HTTPTransport {
	return &HTTPTransport{
		endpoint: cfg.Endpoint,
		client:   httpx.NewClient(cfg.ConnTimeout, cfg.HeaderTimeout, 0, cfg.Pool),
		logger:   logger,
	}
}

// Open implements stream.Transport. A non-2xx response becomes a transport
// GenerationError carrying the server's message.
func (t *HTTPTransport) Open(ctx context.Context, token string, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewGenerationError(domain.KindTransport, fmt.Sprintf("create request: %v", err), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, domain.NewGenerationError(domain.KindTransport, fmt.Sprintf("request failed: %v", err), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		errBody := httpx.ReadErrorBody(resp.Body)
		msg := httpx.ErrorMessage(errBody)
		if msg == "" {
			msg = fallbackRejection
		}
		t.logger.Debug("generation request rejected", "status", resp.StatusCode, "message", msg)
		return nil, domain.NewGenerationError(domain.KindTransport, msg, httpx.StatusError(resp.StatusCode, errBody))
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, domain.NewGenerationError(domain.KindTransport, "no response body", nil)
	}
	return resp.Body, nil
}

var _ stream.Transport = (*HTTPTransport)(nil)
