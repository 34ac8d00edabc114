// Package store persists generated presentations in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"slidecoffee/internal/domain"
)

// SQLiteStore implements domain.PresentationStore using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs the
// schema migration. ":memory:" opens a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open presentation db: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate presentation db: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS presentations (
			id           TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			created_by   TEXT NOT NULL,
			project_id   TEXT NOT NULL DEFAULT '',
			brand_id     TEXT NOT NULL DEFAULT '',
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'draft',
			slides       TEXT NOT NULL DEFAULT '[]',
			sources      TEXT NOT NULL DEFAULT '[]',
			slide_count  INTEGER NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_presentations_workspace_created
			ON presentations (workspace_id, created_at);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save implements domain.PresentationStore.
func (s *SQLiteStore) Save(ctx context.Context, p *domain.Presentation) (string, error) {
	if p.WorkspaceID == "" {
		return "", domain.NewSubSystemError("store", "SQLiteStore.Save", domain.ErrInvalidInput, "workspace id is required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	if p.ID == "" {
		p.ID = ulid.MustNew(ulid.Timestamp(p.CreatedAt), ulid.DefaultEntropy()).String()
	}
	if p.Status == "" {
		p.Status = domain.PresentationDraft
	}

	slides := p.Slides
	if slides == nil {
		slides = []domain.Slide{}
	}
	slidesJSON, err := json.Marshal(slides)
	if err != nil {
		return "", fmt.Errorf("marshal slides: %w", err)
	}
	sources := p.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return "", fmt.Errorf("marshal sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO presentations
			(id, workspace_id, created_by, project_id, brand_id, title, description, status, slides, sources, slide_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.WorkspaceID, p.CreatedBy, p.ProjectID, p.BrandID, p.Title, p.Description, p.Status,
		string(slidesJSON), string(sourcesJSON), len(p.Slides), p.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return "", domain.NewSubSystemError("store", "SQLiteStore.Save", domain.ErrDuplicate, p.ID)
		}
		return "", fmt.Errorf("insert presentation: %w", err)
	}
	return p.ID, nil
}

// Get implements domain.PresentationStore. Presentations in other
// workspaces are reported as not found.
func (s *SQLiteStore) Get(ctx context.Context, workspaceID, id string) (*domain.Presentation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, created_by, project_id, brand_id, title, description, status, slides, sources, created_at
		FROM presentations WHERE id = ? AND workspace_id = ?`, id, workspaceID,
	)

	var (
		p                     domain.Presentation
		slidesStr, sourcesStr string
		createdMillis         int64
	)
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.CreatedBy, &p.ProjectID, &p.BrandID, &p.Title,
		&p.Description, &p.Status, &slidesStr, &sourcesStr, &createdMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewSubSystemError("store", "SQLiteStore.Get", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan presentation: %w", err)
	}
	if err := json.Unmarshal([]byte(slidesStr), &p.Slides); err != nil {
		return nil, fmt.Errorf("unmarshal slides: %w", err)
	}
	if err := json.Unmarshal([]byte(sourcesStr), &p.Sources); err != nil {
		return nil, fmt.Errorf("unmarshal sources: %w", err)
	}
	p.CreatedAt = time.UnixMilli(createdMillis).UTC()
	return &p, nil
}

// UsageSince implements domain.PresentationStore.
func (s *SQLiteStore) UsageSince(ctx context.Context, workspaceID string, since time.Time) (domain.MonthlyUsage, error) {
	var u domain.MonthlyUsage
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(slide_count), 0)
		FROM presentations WHERE workspace_id = ? AND created_at >= ?`,
		workspaceID, since.UnixMilli(),
	).Scan(&u.Presentations, &u.Slides)
	if err != nil {
		return domain.MonthlyUsage{}, fmt.Errorf("query usage: %w", err)
	}
	return u, nil
}

var _ domain.PresentationStore = (*SQLiteStore)(nil)
