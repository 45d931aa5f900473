package crawler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"classifieds-scraper/internal"
	"classifieds-scraper/internal/api"
	"classifieds-scraper/internal/metrics"
	"classifieds-scraper/pkg/models"
)

// Discover walks the search pages of a category and returns every
// identifier found, in first-seen order. maxPages <= 0 asks the API for
// the page count first and falls back to one page if that probe fails.
// Failed pages are skipped. Discovery stops early when a page reports no
// further pages, or on an empty page under StopOnEmpty.
func (c *Coordinator) Discover(ctx context.Context, category string, maxPages int) ([]models.ID, error) {
	limit := maxPages
	if limit <= 0 {
		n, err := c.source.LastPage(ctx, category)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("Page count probe failed, crawling one page", zap.String("category", category), zap.Error(err))
			limit = 1
		case n < 1:
			limit = 1
		default:
			limit = n
		}
	}
	c.logger.Info("Discovering listings", zap.String("category", category), zap.Int("pages", limit))

	found := internal.NewSafeIDs()
	for page := 1; page <= limit; page++ {
		res, err := c.source.SearchPage(ctx, category, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.metrics.SearchPage(metrics.OutcomeFailed)
			c.logger.Warn("Skipping search page",
				zap.Int("page", page),
				zap.String("reason", failureKind(err)),
				zap.Error(err),
			)
			continue
		}

		if len(res.IDs) == 0 {
			c.metrics.SearchPage(metrics.OutcomeEmpty)
			if c.config.EmptyPage == StopOnEmpty {
				c.logger.Info("Empty search page, stopping", zap.Int("page", page))
				break
			}
			c.logger.Info("Empty search page, skipping", zap.Int("page", page))
		} else {
			c.metrics.SearchPage(metrics.OutcomeOK)
			added := 0
			for _, id := range res.IDs {
				if !found.Contains(id) {
					added++
				}
			}
			c.logger.Debug("Search page done", zap.Int("page", page), zap.Int("ids", len(res.IDs)), zap.Int("new", added))
		}

		if !res.HasMorePages {
			c.logger.Info("No more pages", zap.Int("page", page))
			break
		}
		if page < limit {
			if err := c.config.Sleep(ctx, c.config.WaitTime); err != nil {
				return nil, err
			}
		}
	}

	c.logger.Info("Discovery finished", zap.Int("ids", found.Len()))
	return found.IDs(), nil
}

// Reconcile returns the discovered identifiers that are not tracked and
// pass sel, in discovery order, truncated to limit when limit > 0.
func Reconcile(discovered []models.ID, tracked models.IDSet, sel Selector, limit int) []models.ID {
	if sel == nil {
		sel = AllSelector{}
	}
	batch := make([]models.ID, 0)
	taken := models.NewIDSet()
	for _, id := range discovered {
		if limit > 0 && len(batch) >= limit {
			break
		}
		if tracked.Has(id) || !sel.Select(id) {
			continue
		}
		if !taken.Add(id) {
			continue
		}
		batch = append(batch, id)
	}
	return batch
}

// failureKind names the class of a per-page or per-listing failure.
func failureKind(err error) string {
	switch {
	case errors.Is(err, api.ErrStatus):
		return "status"
	case errors.Is(err, api.ErrShape):
		return "shape"
	case errors.Is(err, api.ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}
