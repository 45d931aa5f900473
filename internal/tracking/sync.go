package tracking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"classifieds-scraper/pkg/models"
)

// SyncReport summarises a SyncFromDownloads pass.
type SyncReport struct {
	Found          int
	AlreadyTracked int
	Added          []models.ID
	Skipped        []string
}

// SyncFromDownloads records every listing that has an image directory in
// downloadsDir but is missing from the store, in numeric order. It rebuilds
// tracking state after a crash between image download and commit.
func SyncFromDownloads(ctx context.Context, store Store, downloadsDir string) (SyncReport, error) {
	var report SyncReport

	found, skipped, err := IDsFromDownloads(downloadsDir)
	if err != nil {
		return report, err
	}
	report.Found = found.Len()
	report.Skipped = skipped
	if found.Len() == 0 {
		return report, nil
	}

	tracked, err := store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load tracked ids: %w", err)
	}

	for _, id := range found.Sorted() {
		if tracked.Has(id) {
			report.AlreadyTracked++
			continue
		}
		if err := store.Append(ctx, id); err != nil {
			return report, err
		}
		report.Added = append(report.Added, id)
	}
	return report, nil
}

// IDsFromDownloads lists the numeric IDs of announcement_<id> directories.
// Directories with the prefix but a non-numeric suffix are returned as skipped.
func IDsFromDownloads(downloadsDir string) (models.IDSet, []string, error) {
	ids := models.NewIDSet()

	entries, err := os.ReadDir(downloadsDir)
	if errors.Is(err, os.ErrNotExist) {
		return ids, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("scan downloads: %w", err)
	}

	var skipped []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), models.MediaDirPrefix) {
			continue
		}
		id := models.ID(strings.TrimPrefix(e.Name(), models.MediaDirPrefix))
		if _, ok := id.Int(); !ok || strings.ContainsAny(id.String(), "+-") {
			skipped = append(skipped, e.Name())
			continue
		}
		ids.Add(id)
	}
	return ids, skipped, nil
}
