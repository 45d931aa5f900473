package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"classifieds-scraper/pkg/models"
)

var imageExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}, ".gif": {}, ".bmp": {}, ".tiff": {},
}

type MergeReport struct {
	Folders int
	Copied  int
	Skipped int
}

// Merge copies every image of every announcement_<id> directory into
// outDir as <id>_<filename>. Files already present in outDir are kept.
func Merge(ctx context.Context, downloadsDir, outDir string) (MergeReport, error) {
	var report MergeReport

	entries, err := os.ReadDir(downloadsDir)
	if err != nil {
		return report, fmt.Errorf("read downloads dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return report, fmt.Errorf("create %s: %w", outDir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), models.MediaDirPrefix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		id := strings.TrimPrefix(e.Name(), models.MediaDirPrefix)
		report.Folders++

		src := filepath.Join(downloadsDir, e.Name())
		files, err := os.ReadDir(src)
		if err != nil {
			return report, fmt.Errorf("read %s: %w", src, err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if _, ok := imageExts[strings.ToLower(filepath.Ext(f.Name()))]; !ok {
				continue
			}
			dest := filepath.Join(outDir, id+"_"+f.Name())
			if _, err := os.Stat(dest); err == nil {
				report.Skipped++
				continue
			}
			if err := copyFile(filepath.Join(src, f.Name()), dest); err != nil {
				return report, err
			}
			report.Copied++
		}
	}
	return report, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}
