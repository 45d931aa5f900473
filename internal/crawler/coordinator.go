// Package crawler runs one scrape: discover listing IDs page by page,
// drop the ones already tracked, fetch the rest, write them out and only
// then commit them to the tracking store.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"classifieds-scraper/internal/metrics"
	"classifieds-scraper/internal/output"
	"classifieds-scraper/internal/tracking"
	"classifieds-scraper/internal/transform"
	"classifieds-scraper/pkg/models"
)

var (
	// ErrNothingToProcess means discovery left no new identifier.
	ErrNothingToProcess = errors.New("no new listings to process")
	// ErrPanic wraps a panic recovered from the pipeline.
	ErrPanic = errors.New("scrape run panicked")
)

// ListingSource is the search and detail API.
type ListingSource interface {
	SearchPage(ctx context.Context, category string, page int) (models.PageResult, error)
	LastPage(ctx context.Context, category string) (int, error)
	Announcement(ctx context.Context, id models.ID) (*models.Announcement, error)
}

// MediaFetcher stores the images of one listing.
type MediaFetcher interface {
	Download(ctx context.Context, id models.ID, medias []models.Media) error
}

// RowSink receives a copy of the written rows.
type RowSink interface {
	Save(ctx context.Context, category string, rows []models.Row) error
}

// Config holds the run settings.
type Config struct {
	// WaitTime is the pause between two search pages and between two
	// detail fetches.
	WaitTime  time.Duration
	EmptyPage EmptyPagePolicy
	// Cap bounds the run batch; 0 means no cap.
	Cap          int
	Selector     Selector
	OutputDir    string
	OutputPrefix string
	// Now stamps output file names. Defaults to time.Now.
	Now func() time.Time
	// Sleep waits d or until ctx is done. Defaults to a timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Result summarises a run.
type Result struct {
	OutputFile string
	Discovered int
	Batch      int
	Fetched    int
	Written    int
	Committed  int
}

// Coordinator orchestrates a scrape run.
type Coordinator struct {
	config      Config
	source      ListingSource
	store       tracking.Store
	transformer transform.Transformer

	media  MediaFetcher
	mirror RowSink

	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewCoordinator(cfg Config, source ListingSource, store tracking.Store, tr transform.Transformer, logger *zap.Logger, m *metrics.Metrics) *Coordinator {
	if cfg.Selector == nil {
		cfg.Selector = AllSelector{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = pause
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		config:      cfg,
		source:      source,
		store:       store,
		transformer: tr,
		logger:      logger,
		metrics:     m,
	}
}

// WithMedia dispatches the media of every fetched listing to f.
func (c *Coordinator) WithMedia(f MediaFetcher) *Coordinator {
	c.media = f
	return c
}

// WithMirror copies written rows to s. Mirror failures are logged only.
func (c *Coordinator) WithMirror(s RowSink) *Coordinator {
	c.mirror = s
	return c
}

// Run scrapes one category. maxPages <= 0 reads the page count from the
// API. It returns ErrNothingToProcess when there is nothing new, in which
// case no file is written.
func (c *Coordinator) Run(ctx context.Context, category string, maxPages int) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Scrape run panicked", zap.Any("panic", r), zap.Stack("stack"))
			res, err = Result{}, fmt.Errorf("%w: %v", ErrPanic, r)
		}
		switch {
		case err == nil:
			c.metrics.Run(metrics.OutcomeOK)
		case errors.Is(err, ErrNothingToProcess):
			c.metrics.Run(metrics.OutcomeEmpty)
		default:
			c.metrics.Run(metrics.OutcomeFailed)
		}
	}()

	tracked, err := c.store.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load tracking store: %w", err)
	}
	c.logger.Info("Loaded tracking store", zap.Int("tracked", tracked.Len()))

	discovered, err := c.Discover(ctx, category, maxPages)
	if err != nil {
		return res, err
	}
	res.Discovered = len(discovered)

	batch := Reconcile(discovered, tracked, c.config.Selector, c.config.Cap)
	res.Batch = len(batch)
	c.logger.Info("Reconciled identifiers",
		zap.Int("discovered", res.Discovered),
		zap.Int("batch", res.Batch),
		zap.Int("cap", c.config.Cap),
	)
	if len(batch) == 0 {
		return res, ErrNothingToProcess
	}

	records, processed, err := c.fetchDetails(ctx, batch)
	if err != nil {
		return res, err
	}
	res.Fetched = len(processed)

	labels := c.transformer.CollectSpecs(records)
	rows := c.transform(records, processed, labels)

	path := filepath.Join(c.config.OutputDir, output.FileName(c.config.OutputPrefix, category, c.config.Now()))
	path, written, err := c.write(path, labels, rows)
	if err != nil {
		return res, err
	}
	res.OutputFile = path
	res.Written = written
	c.metrics.Rows(written)
	c.logger.Info("Wrote output file", zap.String("file", path), zap.Int("rows", written))

	if c.mirror != nil && len(rows) > 0 {
		if err := c.mirror.Save(ctx, category, rows); err != nil {
			c.logger.Warn("Mirroring rows failed", zap.Int("rows", len(rows)), zap.Error(err))
		}
	}

	for _, id := range processed {
		if err := c.store.Append(ctx, id); err != nil {
			return res, fmt.Errorf("commit %s: %w", id, err)
		}
		res.Committed++
		c.metrics.Commit()
	}
	c.logger.Info("Committed identifiers", zap.Int("committed", res.Committed))
	return res, nil
}

// fetchDetails fetches every batch identifier in order. Failed fetches
// are skipped; the returned IDs are the ones eligible for commit.
func (c *Coordinator) fetchDetails(ctx context.Context, batch []models.ID) ([]*models.Announcement, []models.ID, error) {
	records := make([]*models.Announcement, 0, len(batch))
	processed := make([]models.ID, 0, len(batch))

	for i, id := range batch {
		a, err := c.source.Announcement(ctx, id)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			c.metrics.Detail(metrics.OutcomeFailed)
			c.logger.Warn("Skipping listing",
				zap.String("id", id.String()),
				zap.String("reason", failureKind(err)),
				zap.Error(err),
			)
		default:
			c.metrics.Detail(metrics.OutcomeOK)
			records = append(records, a)
			processed = append(processed, id)
			c.dispatchMedia(ctx, id, a)
			c.logger.Debug("Fetched listing", zap.String("id", id.String()), zap.Int("n", i+1), zap.Int("of", len(batch)))
		}

		if i < len(batch)-1 {
			if err := c.config.Sleep(ctx, c.config.WaitTime); err != nil {
				return nil, nil, err
			}
		}
	}
	return records, processed, nil
}

func (c *Coordinator) dispatchMedia(ctx context.Context, id models.ID, a *models.Announcement) {
	if c.media == nil || a == nil || len(a.Medias) == 0 {
		return
	}
	if err := c.media.Download(ctx, id, a.Medias); err != nil {
		c.logger.Warn("Image download incomplete", zap.String("id", id.String()), zap.Error(err))
	}
}

// transform flattens records; ids[i] names records[i]. A record that
// fails is left out of the rows but stays eligible for commit.
func (c *Coordinator) transform(records []*models.Announcement, ids []models.ID, labels []string) []models.Row {
	rows := make([]models.Row, 0, len(records))
	for i, a := range records {
		row, err := c.transformer.Transform(a, labels)
		if err != nil {
			c.logger.Warn("Transform failed", zap.String("id", ids[i].String()), zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// write returns the path actually used, which differs from path when a
// file of that name already exists.
func (c *Coordinator) write(path string, labels []string, rows []models.Row) (string, int, error) {
	w := output.NewCSVWriter(path, c.transformer.Columns(), labels)
	if err := w.Open(); err != nil {
		return "", 0, fmt.Errorf("open output: %w", err)
	}
	n, err := w.WriteRows(rows)
	if closeErr := w.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return "", n, fmt.Errorf("write output: %w", err)
	}
	return w.Path(), n, nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
