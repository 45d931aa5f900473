// Package tracking persists the identifiers of listings that were already
// scraped so later runs skip them.
package tracking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"classifieds-scraper/pkg/models"
)

// Store is the persisted set of committed identifiers.
type Store interface {
	// Load reads every committed identifier.
	Load(ctx context.Context) (models.IDSet, error)
	// Append durably records one identifier before returning.
	Append(ctx context.Context, id models.ID) error
	Close() error
}

// FileStore keeps one identifier per line in an append-only text file.
type FileStore struct {
	path string

	mu   sync.Mutex
	file *os.File
	seen models.IDSet
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, seen: models.NewIDSet()}
}

func (s *FileStore) Path() string { return s.path }

// Load returns the identifiers in the file. A missing file is an empty set.
func (s *FileStore) Load(ctx context.Context) (models.IDSet, error) {
	ids := models.NewIDSet()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return ids, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open tracking file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ids.Add(models.ID(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tracking file: %w", err)
	}

	s.mu.Lock()
	for id := range ids {
		s.seen.Add(id)
	}
	s.mu.Unlock()
	return ids, nil
}

// Append writes id and fsyncs. An id this store already loaded or
// appended is not written again.
func (s *FileStore) Append(ctx context.Context, id models.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line := strings.TrimSpace(id.String())
	if line == "" {
		return errors.New("append empty identifier")
	}
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("append %q: identifier spans lines", line)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen.Has(models.ID(line)) {
		return nil
	}
	prefix := ""
	if s.file == nil {
		if err := os.MkdirAll(filepath.Dir(absPath(s.path)), 0o755); err != nil {
			return fmt.Errorf("create tracking dir: %w", err)
		}
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
		if err != nil {
			return fmt.Errorf("open tracking file: %w", err)
		}
		// A last line without its newline would swallow the first id.
		terminated, err := endsWithNewline(f)
		if err != nil {
			_ = f.Close()
			return err
		}
		if !terminated {
			prefix = "\n"
		}
		s.file = f
	}
	if _, err := s.file.WriteString(prefix + line + "\n"); err != nil {
		return fmt.Errorf("append %s: %w", line, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync tracking file: %w", err)
	}
	s.seen.Add(models.ID(line))
	return nil
}

// endsWithNewline reports whether f is empty or its last byte is '\n'.
func endsWithNewline(f *os.File) (bool, error) {
	fi, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat tracking file: %w", err)
	}
	if fi.Size() == 0 {
		return true, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, fi.Size()-1); err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read tracking file: %w", err)
	}
	return last[0] == '\n', nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func absPath(p string) string {
	ap, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return ap
}
