// Package search provides the web search backends used for topic research.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
	"slidecoffee/internal/infra/httpx"
	"slidecoffee/internal/infra/tracer"
)

// Query and result limits.
const (
	MaxQueryLength = 500
	MinResults     = 1
	MaxResults     = 10
	DefaultTimeout = 10 * time.Second
)

// searxngResponse models the relevant portion of the SearXNG JSON response.
type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Engine  string `json:"engine"`
	} `json:"results"`
	NumberOfResults float64 `json:"number_of_results"`
}

// SearXNGBackend searches the web via a SearXNG instance.
type SearXNGBackend struct {
	client      *http.Client
	instanceURL string
	timeout     time.Duration
	logger      *slog.Logger
}

// NewSearXNGBackend creates a search backend backed by a SearXNG instance.
func NewSearXNGBackend(cfg config.SearchConfig, logger *slog.Logger) *SearXNGBackend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SearXNGBackend{
		client:      httpx.NewClient(timeout, timeout, timeout, config.PoolConfig{}),
		instanceURL: strings.TrimRight(cfg.URL, "/"),
		timeout:     timeout,
		logger:      logger,
	}
}

// Name implements domain.SearchBackend.
func (b *SearXNGBackend) Name() string { return "searxng" }

// Search implements domain.SearchBackend. The query is sanitized and count is
// clamped to [MinResults, MaxResults].
func (b *SearXNGBackend) Search(ctx context.Context, query string, count int) ([]domain.Source, error) {
	query = SanitizeQuery(query)
	if query == "" {
		return nil, domain.NewSubSystemError("search", "SearXNGBackend.Search", domain.ErrInvalidInput, "empty query")
	}
	count = ClampCount(count)

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	ctx, span := tracer.StartSpan(ctx, "search.query")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("search.backend", b.Name()), tracer.IntAttr("search.count", count))

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("pageno", "1")

	body, err := httpx.DoJSON(ctx, b.client, http.MethodGet, b.instanceURL+"/search?"+q.Encode(), nil, nil)
	if err != nil {
		tracer.RecordError(span, err)
		if isTimeout(err) {
			return nil, domain.NewSubSystemError("search", "SearXNGBackend.Search", domain.ErrTimeout, err.Error())
		}
		return nil, domain.NewSubSystemError("search", "SearXNGBackend.Search", err, "")
	}

	var resp searxngResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewSubSystemError("search", "SearXNGBackend.Search", domain.ErrProviderError, "parse response: "+err.Error())
	}

	results := make([]domain.Source, 0, count)
	for _, r := range resp.Results {
		if len(results) >= count {
			break
		}
		if r.URL == "" {
			continue
		}
		results = append(results, domain.Source{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Content,
		})
	}

	tracer.SetOK(span)
	b.logger.Debug("searxng search completed", "query", query, "results", len(results))
	return results, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
}

// SanitizeQuery strips angle brackets and truncates to MaxQueryLength runes.
func SanitizeQuery(query string) string {
	query = strings.NewReplacer("<", "", ">", "").Replace(query)
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) > MaxQueryLength {
		query = string([]rune(query)[:MaxQueryLength])
	}
	return query
}

// ClampCount bounds a requested result count.
func ClampCount(n int) int {
	return min(max(n, MinResults), MaxResults)
}

var _ domain.SearchBackend = (*SearXNGBackend)(nil)
