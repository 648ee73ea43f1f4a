package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jjenkins/factbase/internal/model"
)

// MarkerStore persists the last applied version marker of each source
type MarkerStore struct {
	db *sql.DB
}

func NewMarkerStore(db *sql.DB) *MarkerStore {
	return &MarkerStore{db: db}
}

// GetMarker returns "" when the source has never completed a run
func (s *MarkerStore) GetMarker(ctx context.Context, source model.SyncSource) (string, error) {
	var marker string
	err := s.db.QueryRowContext(ctx, `SELECT marker FROM sync_markers WHERE source = $1`, source).Scan(&marker)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get marker for %s: %w", source, err)
	}
	return marker, nil
}

func (s *MarkerStore) SetMarker(ctx context.Context, source model.SyncSource, marker string) error {
	query := `
		INSERT INTO sync_markers (source, marker, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source) DO UPDATE SET marker = EXCLUDED.marker, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, source, marker); err != nil {
		return fmt.Errorf("failed to set marker for %s: %w", source, err)
	}
	return nil
}
