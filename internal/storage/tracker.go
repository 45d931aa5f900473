package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"classifieds-scraper/pkg/models"
)

// PostgresTracker is a tracking.Store backed by the scraped_ids table.
type PostgresTracker struct {
	*Storage
}

func NewPostgresTracker(s *Storage) *PostgresTracker {
	return &PostgresTracker{Storage: s}
}

func (t *PostgresTracker) Load(ctx context.Context) (models.IDSet, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT id FROM scraped_ids`)
	if err != nil {
		return nil, fmt.Errorf("load scraped ids: %w", err)
	}
	defer rows.Close()

	ids := models.NewIDSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan scraped id: %w", err)
		}
		if id = strings.TrimSpace(id); id != "" {
			ids.Add(models.ID(id))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load scraped ids: %w", err)
	}
	return ids, nil
}

// Append inserts id; an id already present is left as is.
func (t *PostgresTracker) Append(ctx context.Context, id models.ID) error {
	value := strings.TrimSpace(id.String())
	if value == "" {
		return errors.New("append empty identifier")
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO scraped_ids (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, value)
	if err != nil {
		return fmt.Errorf("append %s: %w", value, err)
	}
	return nil
}

// Close is a no-op; the connection belongs to Storage.
func (t *PostgresTracker) Close() error { return nil }
