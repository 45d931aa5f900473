// Package storage keeps scrape state in Postgres: the tracking set and a
// JSONB mirror of every written row.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib" // Import the driver
	"go.uber.org/zap"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scraped_ids (
		id         TEXT PRIMARY KEY,
		scraped_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id         TEXT PRIMARY KEY,
		category   TEXT NOT NULL,
		row_data   JSONB NOT NULL,
		scraped_at TIMESTAMPTZ NOT NULL
	)`,
}

type Storage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewStorage(db *sql.DB, logger *zap.Logger) *Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{db: db, logger: logger}
}

// Open connects to url, retrying while the database comes up.
func Open(ctx context.Context, url string, attempts int, wait time.Duration, logger *zap.Logger) (*sql.DB, error) {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		var db *sql.DB
		db, err = sql.Open("pgx", url)
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				return db, nil
			}
			db.Close()
		}
		if logger != nil {
			logger.Warn("Waiting for database", zap.Int("attempt", i), zap.Int("attempts", attempts), zap.Error(err))
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect to database after %d attempts: %w", attempts, err)
}

// EnsureSchema creates the tables if they are missing.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
