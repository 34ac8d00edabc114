package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidecoffee/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &domain.Presentation{
		WorkspaceID: "ws-1",
		CreatedBy:   "user-1",
		BrandID:     "brand-9",
		Title:       "Go Concurrency",
		Description: "Goroutines and channels",
		Slides: []domain.Slide{
			{Title: "Intro", Content: "Why concurrency", Layout: "title"},
			{Title: "Channels", Content: "Typed pipes"},
		},
		Sources: []domain.Source{{URL: "https://go.dev", Title: "Go"}},
	}
	id, err := s.Save(ctx, p)
	require.NoError(t, err)
	assert.Len(t, id, 26)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, domain.PresentationDraft, p.Status)

	got, err := s.Get(ctx, "ws-1", id)
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency", got.Title)
	assert.Equal(t, "user-1", got.CreatedBy)
	assert.Equal(t, "brand-9", got.BrandID)
	assert.Equal(t, p.Slides, got.Slides)
	assert.Equal(t, p.Sources, got.Sources)
	assert.WithinDuration(t, p.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestGetScopedToWorkspace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, &domain.Presentation{WorkspaceID: "ws-1", CreatedBy: "u", Title: "T"})
	require.NoError(t, err)

	_, err = s.Get(ctx, "ws-2", id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, domain.CodePresentationNotFound, domain.ErrorCodeOf(err))
}

func TestSaveDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, &domain.Presentation{ID: "fixed", WorkspaceID: "ws", Title: "a"})
	require.NoError(t, err)
	_, err = s.Save(ctx, &domain.Presentation{ID: "fixed", WorkspaceID: "ws", Title: "b"})
	assert.Equal(t, domain.CodeStoreDuplicate, domain.ErrorCodeOf(err))
}

func TestSaveRequiresWorkspace(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Save(context.Background(), &domain.Presentation{Title: "x"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestUsageSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)

	save := func(ws string, slides int, at time.Time) {
		p := &domain.Presentation{WorkspaceID: ws, Title: "t", CreatedAt: at, Slides: make([]domain.Slide, slides)}
		_, err := s.Save(ctx, p)
		require.NoError(t, err)
	}
	save("ws-1", 3, now)
	save("ws-1", 4, now.Add(time.Hour))
	save("ws-1", 10, lastMonth)
	save("ws-2", 6, now)

	u, err := s.UsageSince(ctx, "ws-1", domain.StartOfMonth(now))
	require.NoError(t, err)
	assert.Equal(t, domain.MonthlyUsage{Slides: 7, Presentations: 2}, u)

	u, err = s.UsageSince(ctx, "empty", domain.StartOfMonth(now))
	require.NoError(t, err)
	assert.Equal(t, domain.MonthlyUsage{}, u)
}

func TestInMemoryStore(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Save(context.Background(), &domain.Presentation{WorkspaceID: "ws", Title: "t"})
	require.NoError(t, err)
	_, err = s.Get(context.Background(), "ws", id)
	require.NoError(t, err)
}
