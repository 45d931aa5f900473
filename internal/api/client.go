// Package api talks to the marketplace GraphQL endpoint: paged category
// search and by-ID listing details, each behind a bounded retry loop.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"classifieds-scraper/internal/metrics"
	"classifieds-scraper/pkg/models"
)

const maxResponseBytes = 16 << 20

// ClientConfig holds the request settings of a Client.
type ClientConfig struct {
	Endpoint   string
	Headers    map[string]string
	PageSize   int
	Tries      int
	RetryDelay time.Duration
	Timeout    time.Duration
	// DetailQuery is QueryAll or QueryMini.
	DetailQuery string
}

type Client struct {
	cfg     ClientConfig
	http    *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewClient(cfg ClientConfig, logger *zap.Logger, m *metrics.Metrics) *Client {
	if cfg.Tries <= 0 {
		cfg.Tries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.DetailQuery == "" {
		cfg.DetailQuery = QueryAll
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		metrics: m,
	}
}

type searchData struct {
	Search *struct {
		Announcements *struct {
			Data []struct {
				ID models.ID `json:"id"`
			} `json:"data"`
			PaginatorInfo *struct {
				LastPage     int  `json:"lastPage"`
				HasMorePages bool `json:"hasMorePages"`
			} `json:"paginatorInfo"`
		} `json:"announcements"`
	} `json:"search"`
}

type detailData struct {
	Announcement *models.Announcement `json:"announcement"`
}

// SearchPage fetches one page of listing IDs for a category.
func (c *Client) SearchPage(ctx context.Context, category string, page int) (models.PageResult, error) {
	var data searchData
	payload := SearchPayload(category, page, c.cfg.PageSize)
	err := c.withRetry(ctx, "search", fmt.Sprintf("page %d", page), func() error {
		data = searchData{}
		return c.post(ctx, payload, &data)
	})
	if err != nil {
		return models.PageResult{}, err
	}
	return pageResult(data)
}

// LastPage issues a single search for page 1 and reads the page count.
// It does not retry: callers fall back to a default on failure.
func (c *Client) LastPage(ctx context.Context, category string) (int, error) {
	var data searchData
	if err := c.post(ctx, SearchPayload(category, 1, c.cfg.PageSize), &data); err != nil {
		return 0, err
	}
	res, err := pageResult(data)
	if err != nil {
		return 0, err
	}
	if res.LastPage < 1 {
		return 1, nil
	}
	return res.LastPage, nil
}

// Announcement fetches the detail record of one listing.
func (c *Client) Announcement(ctx context.Context, id models.ID) (*models.Announcement, error) {
	var data detailData
	payload := DetailPayload(id.String(), c.cfg.DetailQuery)
	err := c.withRetry(ctx, "detail", "id "+id.String(), func() error {
		data = detailData{}
		return c.post(ctx, payload, &data)
	})
	if err != nil {
		return nil, err
	}
	if data.Announcement == nil {
		return nil, shapeErrorf("no announcement returned for id %s", id)
	}
	if data.Announcement.ID == "" {
		data.Announcement.ID = id
	}
	return data.Announcement, nil
}

func pageResult(data searchData) (models.PageResult, error) {
	if data.Search == nil || data.Search.Announcements == nil {
		return models.PageResult{}, shapeErrorf("search.announcements missing")
	}
	ann := data.Search.Announcements
	res := models.PageResult{IDs: make([]models.ID, 0, len(ann.Data))}
	for _, item := range ann.Data {
		if item.ID == "" {
			continue
		}
		res.IDs = append(res.IDs, item.ID)
	}
	if ann.PaginatorInfo != nil {
		res.LastPage = ann.PaginatorInfo.LastPage
		res.HasMorePages = ann.PaginatorInfo.HasMorePages
	}
	return res, nil
}

// withRetry runs fn up to Tries times. Only transport failures are
// retried; status and shape failures return at once.
func (c *Client) withRetry(ctx context.Context, kind, target string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.Tries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		c.logger.Warn("request attempt failed",
			zap.String("kind", kind),
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Int("tries", c.cfg.Tries),
			zap.Error(err),
		)

		if !retryable(err) {
			return err
		}
		if attempt == c.cfg.Tries {
			break
		}

		c.metrics.Retry(kind)
		timer := time.NewTimer(c.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrTransport, c.cfg.Tries, lastErr)
}

// post sends one GraphQL request and decodes its data member into out.
func (c *Client) post(ctx context.Context, payload Request, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return &StatusError{Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return shapeErrorf("decode envelope: %v", err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		if len(envelope.Errors) > 0 {
			msgs := make([]string, 0, len(envelope.Errors))
			for _, e := range envelope.Errors {
				msgs = append(msgs, e.Message)
			}
			return shapeErrorf("graphql errors: %s", strings.Join(msgs, "; "))
		}
		return shapeErrorf("response has no data")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return shapeErrorf("decode data: %v", err)
	}
	return nil
}
