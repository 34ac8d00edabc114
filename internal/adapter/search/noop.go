package search

import (
	"context"
	"log/slog"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
)

// NoopBackend is used when research is not configured. Every search fails
// with domain.ErrDisabled so the pipeline continues without sources.
type NoopBackend struct{}

// Name implements domain.SearchBackend.
func (NoopBackend) Name() string { return "noop" }

// Search implements domain.SearchBackend.
func (NoopBackend) Search(context.Context, string, int) ([]domain.Source, error) {
	return nil, domain.NewSubSystemError("search", "NoopBackend.Search", domain.ErrDisabled, "")
}

// New returns the backend selected by cfg.
func New(cfg config.SearchConfig, logger *slog.Logger) domain.SearchBackend {
	switch cfg.Backend {
	case "searxng":
		return NewSearXNGBackend(cfg, logger)
	default:
		return NoopBackend{}
	}
}

var _ domain.SearchBackend = NoopBackend{}
