// Package output writes flattened rows to CSV files whose column set is
// fixed when the file is opened.
package output

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"classifieds-scraper/internal/transform"
	"classifieds-scraper/pkg/models"
)

// ErrNotOpen is returned when rows are written before Open.
var ErrNotOpen = errors.New("csv writer is not open")

// CSVWriter owns one output file. Columns are the fixed columns followed
// by one spec column per label in sorted order.
type CSVWriter struct {
	path    string
	columns []string

	file *os.File
	buf  *bufio.Writer
	w    *csv.Writer
}

func NewCSVWriter(path string, fixed []string, labels []string) *CSVWriter {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)

	columns := make([]string, 0, len(fixed)+len(sorted))
	columns = append(columns, fixed...)
	for _, l := range sorted {
		columns = append(columns, transform.SpecColumn(l))
	}
	return &CSVWriter{path: path, columns: columns}
}

func (w *CSVWriter) Path() string { return w.path }

// Columns returns a copy of the header.
func (w *CSVWriter) Columns() []string {
	return append([]string(nil), w.columns...)
}

// maxSuffix bounds the search for a free file name.
const maxSuffix = 1000

// Open creates the file and writes the header. An existing file is never
// replaced: when the name is taken, _1, _2, ... is added before the
// extension and Path reports the name actually used.
func (w *CSVWriter) Open() error {
	if w.file != nil {
		return fmt.Errorf("csv writer for %s already open", w.path)
	}
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, path, err := createFresh(w.path)
	if err != nil {
		return err
	}
	w.path = path
	return w.start(f)
}

// start writes the header to f. On failure f is closed and the writer
// stays unopened.
func (w *CSVWriter) start(f *os.File) error {
	w.file = f
	w.buf = bufio.NewWriter(f)
	w.w = csv.NewWriter(w.buf)

	if err := w.w.Write(w.columns); err != nil {
		w.discard()
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.flush(); err != nil {
		w.discard()
		return err
	}
	return nil
}

func createFresh(path string) (*os.File, string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	candidate := path
	for i := 1; ; i++ {
		f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, os.ErrExist) || i > maxSuffix {
			return nil, "", fmt.Errorf("create %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}

func (w *CSVWriter) discard() {
	_ = w.file.Close()
	w.file, w.buf, w.w = nil, nil, nil
}

// WriteRows appends one line per non-nil row and flushes. Keys outside
// the header are ignored.
func (w *CSVWriter) WriteRows(rows []models.Row) (int, error) {
	if w.w == nil {
		return 0, ErrNotOpen
	}
	written := 0
	record := make([]string, len(w.columns))
	for _, row := range rows {
		if row == nil {
			continue
		}
		for i, col := range w.columns {
			record[i] = formatValue(row[col])
		}
		if err := w.w.Write(record); err != nil {
			return written, fmt.Errorf("write row: %w", err)
		}
		written++
	}
	if err := w.flush(); err != nil {
		return written, err
	}
	return written, nil
}

func (w *CSVWriter) flush() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return w.file.Sync()
}

func (w *CSVWriter) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file, w.buf, w.w = nil, nil, nil
	return err
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// FileName builds <prefix>_<category>_<timestamp>.csv with dashes in the
// category replaced by underscores.
func FileName(prefix, category string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s.csv", prefix, strings.ReplaceAll(category, "-", "_"), at.Format("20060102_150405"))
}
