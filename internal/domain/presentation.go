package domain

import (
	"context"
	"time"
)

// Presentation status values.
const (
	PresentationDraft = "draft"
)

// Presentation is a saved deck.
type Presentation struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	CreatedBy   string    `json:"createdBy"`
	ProjectID   string    `json:"projectId,omitempty"`
	BrandID     string    `json:"brandId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Slides      []Slide   `json:"slides"`
	Sources     []Source  `json:"sources,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PresentationStore persists generated presentations.
type PresentationStore interface {
	// Save assigns an ID when empty, stores p, and returns the ID.
	Save(ctx context.Context, p *Presentation) (string, error)
	// Get returns the presentation with id within workspace.
	Get(ctx context.Context, workspaceID, id string) (*Presentation, error)
	// UsageSince counts presentations and slides created in workspace at or after since.
	UsageSince(ctx context.Context, workspaceID string, since time.Time) (MonthlyUsage, error)
	Close() error
}

// StartOfMonth returns midnight of the first day of t's month, in t's location.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
