// Package media stores listing images on disk, one directory per listing.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"classifieds-scraper/internal/metrics"
	"classifieds-scraper/pkg/models"
)

var (
	ErrDisallowed = errors.New("blocked by robots.txt")
	ErrBadStatus  = errors.New("unexpected image response status")
)

const defaultExt = ".jpg"

var knownExts = []string{".png", ".jpeg", ".webp", ".jpg"}

type DownloaderConfig struct {
	Dir           string
	Headers       map[string]string
	UserAgent     string
	Interval      time.Duration
	Timeout       time.Duration
	RespectRobots bool
}

// Downloader fetches the media of one listing at a time into
// <Dir>/announcement_<id>/image_<n><ext>.
type Downloader struct {
	cfg     DownloaderConfig
	client  *http.Client
	gate    *hostGate
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewDownloader(cfg DownloaderConfig, logger *zap.Logger, m *metrics.Metrics) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &http.Client{Timeout: cfg.Timeout}
	return &Downloader{
		cfg:     cfg,
		client:  client,
		gate:    newHostGate(client, cfg.UserAgent, cfg.Interval),
		logger:  logger,
		metrics: m,
	}
}

// Download stores every media of the listing that is not on disk yet.
// A directory already holding at least len(medias) files is left alone.
// Individual image failures are logged and reported together; the
// remaining images are still attempted.
func (d *Downloader) Download(ctx context.Context, id models.ID, medias []models.Media) error {
	if len(medias) == 0 {
		return nil
	}
	dir := filepath.Join(d.cfg.Dir, models.MediaDirName(id))

	entries, err := os.ReadDir(dir)
	switch {
	case err == nil && len(entries) >= len(medias):
		d.logger.Debug("Images already present", zap.String("id", id.String()), zap.Int("files", len(entries)))
		d.metrics.Image(metrics.OutcomeSkipped)
		return nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("read %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	failed := 0
	for i, m := range medias {
		if m.MediaURL == "" {
			continue
		}
		dest := filepath.Join(dir, fmt.Sprintf("image_%d%s", i+1, Ext(m.MediaURL)))
		if _, err := os.Stat(dest); err == nil {
			continue
		}

		if err := d.fetch(ctx, m.MediaURL, dest); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			d.metrics.Image(metrics.OutcomeFailed)
			d.logger.Warn("Image download failed",
				zap.String("id", id.String()),
				zap.Int("index", i+1),
				zap.String("url", m.MediaURL),
				zap.Error(err),
			)
			continue
		}
		d.metrics.Image(metrics.OutcomeOK)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed for %s", failed, len(medias), id)
	}
	return nil
}

func (d *Downloader) fetch(ctx context.Context, target, dest string) error {
	if d.cfg.RespectRobots && !d.gate.Allowed(ctx, target) {
		return ErrDisallowed
	}
	if err := d.gate.Wait(ctx, target); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	for k, v := range d.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrBadStatus, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".image-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// Ext picks the file extension of an image URL, ignoring the query.
// Unrecognised extensions fall back to .jpg.
func Ext(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	lower := strings.ToLower(p)
	for _, ext := range knownExts {
		if strings.HasSuffix(lower, ext) {
			return path.Ext(p)
		}
	}
	return defaultExt
}
