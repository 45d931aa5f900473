package media_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"classifieds-scraper/internal/media"
	"classifieds-scraper/internal/metrics"
	"classifieds-scraper/pkg/models"
)

type imageServer struct {
	*httptest.Server
	images atomic.Int32
	agent  atomic.Value
}

func newImageServer(t *testing.T) *imageServer {
	t.Helper()
	s := &imageServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		s.images.Add(1)
		s.agent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("bytes:" + r.URL.Path))
	})
	mux.HandleFunc("/private/", func(w http.ResponseWriter, r *http.Request) {
		s.images.Add(1)
		_, _ = w.Write([]byte("secret"))
	})
	mux.HandleFunc("/missing/", func(w http.ResponseWriter, r *http.Request) {
		s.images.Add(1)
		http.NotFound(w, r)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newDownloader(dir string, m *metrics.Metrics) *media.Downloader {
	return media.NewDownloader(media.DownloaderConfig{
		Dir:           dir,
		Headers:       map[string]string{"User-Agent": "test-agent"},
		UserAgent:     "test-agent",
		RespectRobots: true,
	}, zap.NewNop(), m)
}

func TestDownload_StoresImagesWithExtensions(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	m := metrics.New()

	err := newDownloader(dir, m).Download(context.Background(), "42", []models.Media{
		{MediaURL: srv.URL + "/img/a.png?w=800"},
		{MediaURL: ""},
		{MediaURL: srv.URL + "/img/b"},
	})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "announcement_42", "image_1.png"))
	require.NoError(t, err)
	assert.Equal(t, "bytes:/img/a.png", string(got))
	assert.FileExists(t, filepath.Join(dir, "announcement_42", "image_3.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "announcement_42", "image_2.jpg"))

	assert.Equal(t, int32(2), srv.images.Load())
	assert.Equal(t, "test-agent", srv.agent.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Images.WithLabelValues(metrics.OutcomeOK)))
}

func TestDownload_SkipsWhenDirectoryIsFull(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	annDir := filepath.Join(dir, "announcement_7")
	require.NoError(t, os.MkdirAll(annDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(annDir, "image_1.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(annDir, "image_2.jpg"), []byte("y"), 0o644))

	err := newDownloader(dir, nil).Download(context.Background(), "7", []models.Media{
		{MediaURL: srv.URL + "/img/1.jpg"},
		{MediaURL: srv.URL + "/img/2.jpg"},
	})
	require.NoError(t, err)
	assert.Zero(t, srv.images.Load())
}

func TestDownload_ResumesPartialDirectory(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	annDir := filepath.Join(dir, "announcement_8")
	require.NoError(t, os.MkdirAll(annDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(annDir, "image_1.jpg"), []byte("old"), 0o644))

	err := newDownloader(dir, nil).Download(context.Background(), "8", []models.Media{
		{MediaURL: srv.URL + "/img/1.jpg"},
		{MediaURL: srv.URL + "/img/2.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.images.Load())

	old, err := os.ReadFile(filepath.Join(annDir, "image_1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
	assert.FileExists(t, filepath.Join(annDir, "image_2.jpg"))
}

func TestDownload_FailuresDoNotStopTheBatch(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	m := metrics.New()

	err := newDownloader(dir, m).Download(context.Background(), "9", []models.Media{
		{MediaURL: srv.URL + "/missing/1.jpg"},
		{MediaURL: srv.URL + "/private/2.jpg"},
		{MediaURL: srv.URL + "/img/3.webp"},
	})
	require.Error(t, err)

	annDir := filepath.Join(dir, "announcement_9")
	assert.NoFileExists(t, filepath.Join(annDir, "image_1.jpg"))
	assert.NoFileExists(t, filepath.Join(annDir, "image_2.jpg"))
	assert.FileExists(t, filepath.Join(annDir, "image_3.webp"))

	// robots.txt kept the private image from being requested at all.
	assert.Equal(t, int32(2), srv.images.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Images.WithLabelValues(metrics.OutcomeFailed)))

	entries, err := os.ReadDir(annDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownload_NoMedia(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, newDownloader(dir, nil).Download(context.Background(), "1", nil))
	assert.NoDirExists(t, filepath.Join(dir, "announcement_1"))
}

func TestExt(t *testing.T) {
	tests := map[string]string{
		"https://cdn.example.com/a/photo.PNG":        ".PNG",
		"https://cdn.example.com/a/photo.jpeg?x=1":   ".jpeg",
		"https://cdn.example.com/a/photo.webp#frag":  ".webp",
		"https://cdn.example.com/a/photo.jpg":        ".jpg",
		"https://cdn.example.com/a/photo.gif":        ".jpg",
		"https://cdn.example.com/a/photo":            ".jpg",
		"https://cdn.example.com/a/photo?name=x.png": ".jpg",
	}
	for in, want := range tests {
		assert.Equal(t, want, media.Ext(in), in)
	}
}

func TestMerge(t *testing.T) {
	downloads := t.TempDir()
	out := filepath.Join(t.TempDir(), "merged")

	write := func(rel, content string) {
		p := filepath.Join(downloads, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	write("announcement_1/image_1.jpg", "a")
	write("announcement_1/image_2.PNG", "b")
	write("announcement_1/notes.txt", "skip")
	write("announcement_2/image_1.webp", "c")
	write("other/image_1.jpg", "skip")

	report, err := media.Merge(context.Background(), downloads, out)
	require.NoError(t, err)
	assert.Equal(t, media.MergeReport{Folders: 2, Copied: 3}, report)

	got, err := os.ReadFile(filepath.Join(out, "1_image_2.PNG"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(got))
	assert.FileExists(t, filepath.Join(out, "2_image_1.webp"))
	assert.NoFileExists(t, filepath.Join(out, "1_notes.txt"))

	report, err = media.Merge(context.Background(), downloads, out)
	require.NoError(t, err)
	assert.Equal(t, media.MergeReport{Folders: 2, Skipped: 3}, report)
}

func TestMerge_MissingDownloads(t *testing.T) {
	_, err := media.Merge(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
