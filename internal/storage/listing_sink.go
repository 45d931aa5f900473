package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"classifieds-scraper/pkg/models"
)

// ListingSink mirrors written rows into the listings table.
type ListingSink struct {
	*Storage
	now func() time.Time
}

func NewListingSink(s *Storage) *ListingSink {
	return &ListingSink{Storage: s, now: time.Now}
}

// Save stores rows in one transaction. Rows without an id are skipped;
// listings already mirrored are kept unchanged.
func (s *ListingSink) Save(ctx context.Context, category string, rows []models.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO listings (id, category, row_data, scraped_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	at := s.now().UTC()
	saved := 0
	for _, row := range rows {
		id, ok := row["id"].(string)
		if !ok || id == "" {
			s.logger.Warn("Skipping row without id")
			continue
		}
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode row %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, category, string(data), at); err != nil {
			return fmt.Errorf("save listing %s: %w", id, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug("Mirrored rows", zap.Int("rows", saved))
	return nil
}
