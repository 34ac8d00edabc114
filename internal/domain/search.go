package domain

import "context"

// SearchBackend abstracts a web search engine used for topic research.
type SearchBackend interface {
	// Search performs a web search and returns at most count results.
	Search(ctx context.Context, query string, count int) ([]Source, error)
	// Name returns the backend identifier (e.g. "searxng").
	Name() string
}
