package main

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"classifieds-scraper/internal/config"
	"classifieds-scraper/internal/storage"
	"classifieds-scraper/internal/tracking"
)

const (
	dbAttempts = 10
	dbWait     = 2 * time.Second
)

// runStores bundles the tracking store of a run with what it holds open.
type runStores struct {
	tracker tracking.Store
	mirror  *storage.ListingSink

	lock          *tracking.Lock
	stopKeepAlive func()
	db            *storage.Storage
}

// openStores selects the tracking backend. With DB_URL set, written rows
// are also mirrored to Postgres whatever the backend.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runStores, error) {
	s := &runStores{}

	if cfg.DatabaseURL != "" {
		db, err := storage.Open(ctx, cfg.DatabaseURL, dbAttempts, dbWait, logger)
		if err != nil {
			return nil, err
		}
		s.db = storage.NewStorage(db, logger.Named("storage"))
		if err := s.db.EnsureSchema(ctx); err != nil {
			s.Close(logger)
			return nil, err
		}
		s.mirror = storage.NewListingSink(s.db)
	}

	if strings.EqualFold(cfg.TrackingBackend, "postgres") {
		s.tracker = storage.NewPostgresTracker(s.db)
		return s, nil
	}

	lock, err := tracking.AcquireLock(cfg.TrackingFile+".lock", cfg.LockTTL)
	if err != nil {
		s.Close(logger)
		return nil, err
	}
	s.lock = lock
	s.stopKeepAlive = lock.KeepAlive(ctx, cfg.LockTTL/3, func(err error) {
		logger.Warn("Refreshing tracking lock failed", zap.Error(err))
	})
	s.tracker = tracking.NewFileStore(cfg.TrackingFile)
	return s, nil
}

func (s *runStores) Close(logger *zap.Logger) {
	if s.tracker != nil {
		if err := s.tracker.Close(); err != nil {
			logger.Warn("Closing tracking store failed", zap.Error(err))
		}
	}
	if s.stopKeepAlive != nil {
		s.stopKeepAlive()
	}
	if err := s.lock.Release(); err != nil {
		logger.Warn("Releasing tracking lock failed", zap.Error(err))
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Warn("Closing database failed", zap.Error(err))
		}
	}
}
