package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"slidecoffee/internal/domain"
)

// MaxResponseBody caps how much of a JSON response is read.
const MaxResponseBody = 10 * 1024 * 1024

// maxErrorBody caps how much of an error response is kept for messages.
const maxErrorBody = 4096

// StatusError maps an HTTP status code and response body to a domain error
// so callers can classify failures with errors.Is.
func StatusError(statusCode int, body []byte) error {
	detail := fmt.Sprintf("API error %d: %s", statusCode, strings.TrimSpace(string(body)))

	switch {
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimit, detail)
	case statusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, detail)
	case statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrForbidden, detail)
	case statusCode == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %s", domain.ErrContextOverflow, detail)
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, detail)
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, detail)
	case statusCode >= 500:
		return fmt.Errorf("%w: %s", domain.ErrProviderError, detail)
	default:
		return fmt.Errorf("%s", detail)
	}
}

// ErrorMessage extracts a human message from a JSON error body. It accepts
// {"error":"..."}, {"error":{"message":"..."}} and {"message":"..."}.
func ErrorMessage(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Error) > 0 {
		var s string
		if json.Unmarshal(payload.Error, &s) == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	return payload.Message
}

// ReadErrorBody drains at most a few KB of an error response.
func ReadErrorBody(r io.Reader) []byte {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return b
}

// DoJSON sends body (nil for GET) and returns the response body. Non-2xx
// responses become StatusError values.
func DoJSON(ctx context.Context, client *http.Client, method, url string, body []byte, headers map[string]string) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, StatusError(resp.StatusCode, ReadErrorBody(resp.Body))
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return respBody, nil
}
