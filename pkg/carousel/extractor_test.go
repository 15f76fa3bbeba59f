package carousel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voomreport/pkg/config"
	errs "voomreport/pkg/errors"
	"voomreport/pkg/manifest"
	"voomreport/pkg/storage"
)

// fakeDriver replays a scripted sequence of observations
type fakeDriver struct {
	observations []Observation
	pos          int
	hint         []string
	openErr      error
	viewerErr    error
	advances     int
	closed       bool
}

func (d *fakeDriver) Open(ctx context.Context, url string) error { return d.openErr }
func (d *fakeDriver) OpenViewer(ctx context.Context) error       { return d.viewerErr }
func (d *fakeDriver) SlideHint(ctx context.Context) []string     { return d.hint }

func (d *fakeDriver) Observe(ctx context.Context) (Observation, error) {
	if d.pos >= len(d.observations) {
		// keep serving the last observation, like a stalled carousel
		return d.observations[len(d.observations)-1], nil
	}
	obs := d.observations[d.pos]
	d.pos++
	return obs, nil
}

func (d *fakeDriver) Advance(ctx context.Context) error {
	d.advances++
	return nil
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

func testConfig(dir string) *config.ExtractionConfig {
	return &config.ExtractionConfig{
		DownloadDir:     dir,
		SettleDelay:     time.Millisecond,
		DownloadTimeout: 5 * time.Second,
	}
}

func newTestExtractor(t *testing.T, driver Driver, cfg *config.ExtractionConfig) *Extractor {
	t.Helper()
	store, err := storage.NewManager(cfg.DownloadDir)
	require.NoError(t, err)
	return New(driver, store, cfg, nil)
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpegdata-" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractorDownloadsDistinctSlidesOnce(t *testing.T) {
	srv := imageServer(t)

	// the carousel revisits slide A mid-traversal, then stalls on C
	driver := &fakeDriver{observations: []Observation{
		{Identity: "0", URL: srv.URL + "/a.jpg"},
		{Identity: "1", URL: srv.URL + "/b.jpg"},
		{Identity: "0", URL: srv.URL + "/a.jpg"},
		{Identity: "2", URL: srv.URL + "/c.jpg"},
		{Identity: "2", URL: srv.URL + "/c.jpg"},
	}}

	ex := newTestExtractor(t, driver, testConfig(t.TempDir()))
	assets, err := ex.Run(context.Background(), "https://voom.line.me/post/123")
	require.NoError(t, err)

	require.Len(t, assets, 3)
	assert.Equal(t, srv.URL+"/a.jpg", assets[0].SourceURL)
	assert.Equal(t, srv.URL+"/b.jpg", assets[1].SourceURL)
	assert.Equal(t, srv.URL+"/c.jpg", assets[2].SourceURL)
	for i, asset := range assets {
		assert.Equal(t, i+1, asset.Sequence)
		assert.Equal(t, "image/jpeg", asset.MIME)
		assert.Greater(t, asset.Bytes, int64(0))
		assert.FileExists(t, asset.LocalPath)
	}

	m, err := manifest.Load(filepath.Dir(assets[0].LocalPath))
	require.NoError(t, err)
	assert.Equal(t, "https://voom.line.me/post/123", m.PostURL)
	require.Len(t, m.Images, 3)
	assert.Equal(t, "1.jpg", m.Images[0].File)
	assert.Equal(t, srv.URL+"/c.jpg", m.Images[2].SourceURL)
}

func TestExtractorSingleImagePost(t *testing.T) {
	srv := imageServer(t)

	driver := &fakeDriver{observations: []Observation{
		{URL: srv.URL + "/only.jpg"},
		{URL: srv.URL + "/only.jpg"},
	}}

	ex := newTestExtractor(t, driver, testConfig(t.TempDir()))
	assets, err := ex.Run(context.Background(), "https://voom.line.me/post/1")
	require.NoError(t, err)
	assert.Len(t, assets, 1)
}

func TestExtractorStopsOnFailedObservation(t *testing.T) {
	srv := imageServer(t)

	driver := &fakeDriver{observations: []Observation{
		{Identity: "0", URL: srv.URL + "/a.jpg"},
		{Failed: true},
	}}

	ex := newTestExtractor(t, driver, testConfig(t.TempDir()))
	assets, err := ex.Run(context.Background(), "https://voom.line.me/post/1")
	require.NoError(t, err)
	assert.Len(t, assets, 1)
}

func TestExtractorNoImagesFound(t *testing.T) {
	driver := &fakeDriver{observations: []Observation{
		{Failed: true},
	}}

	ex := newTestExtractor(t, driver, testConfig(t.TempDir()))
	_, err := ex.Run(context.Background(), "https://voom.line.me/post/1")
	require.Error(t, err)

	var extractionErr *errs.Error
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, errs.ErrorTypeExtraction, extractionErr.Type)
}

func TestExtractorNavigationFailure(t *testing.T) {
	driver := &fakeDriver{
		openErr:      context.DeadlineExceeded,
		observations: []Observation{{Failed: true}},
	}

	ex := newTestExtractor(t, driver, testConfig(t.TempDir()))
	_, err := ex.Run(context.Background(), "https://voom.line.me/post/1")
	require.Error(t, err)

	var navErr *errs.Error
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, errs.ErrorTypeNavigation, navErr.Type)
}

func TestExtractorDownloadFailureAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	driver := &fakeDriver{observations: []Observation{
		{Identity: "0", URL: srv.URL + "/a.jpg"},
	}}

	ex := newTestExtractor(t, driver, testConfig(t.TempDir()))
	_, err := ex.Run(context.Background(), "https://voom.line.me/post/1")
	require.Error(t, err)

	var dlErr *errs.Error
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, errs.ErrorTypeDownload, dlErr.Type)
	assert.Equal(t, http.StatusForbidden, dlErr.Code)
}

func TestExtractorHonorsImageLimit(t *testing.T) {
	srv := imageServer(t)

	driver := &fakeDriver{observations: []Observation{
		{Identity: "0", URL: srv.URL + "/a.jpg"},
		{Identity: "1", URL: srv.URL + "/b.jpg"},
		{Identity: "2", URL: srv.URL + "/c.jpg"},
	}}

	cfg := testConfig(t.TempDir())
	cfg.MaxImages = 2

	ex := newTestExtractor(t, driver, cfg)
	assets, err := ex.Run(context.Background(), "https://voom.line.me/post/1")
	require.NoError(t, err)
	assert.Len(t, assets, 2)
}

func TestExtractorClearsPreviousSession(t *testing.T) {
	srv := imageServer(t)
	dir := t.TempDir()

	store, err := storage.NewManager(dir)
	require.NoError(t, err)
	_, err = store.SaveImage(7, ".jpg", []byte("stale"))
	require.NoError(t, err)

	driver := &fakeDriver{observations: []Observation{
		{URL: srv.URL + "/fresh.jpg"},
		{URL: srv.URL + "/fresh.jpg"},
	}}

	ex := New(driver, store, testConfig(dir), nil)
	assets, err := ex.Run(context.Background(), "https://voom.line.me/post/1")
	require.NoError(t, err)
	require.Len(t, assets, 1)

	files, err := store.List()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestExtensionOf(t *testing.T) {
	assert.Equal(t, ".png", extensionOf("https://cdn.example/img.png?x=1"))
	assert.Equal(t, ".jpg", extensionOf("https://cdn.example/raw"))
	assert.Equal(t, ".jpg", extensionOf("::notaurl"))
}

func TestImageMIME(t *testing.T) {
	assert.Equal(t, "image/png", imageMIME("image/png", ".jpg"))
	assert.Equal(t, "image/webp", imageMIME("image/webp; charset=binary", ".jpg"))
	assert.Equal(t, "image/png", imageMIME("application/octet-stream", ".png"))
	assert.Equal(t, "image/jpeg", imageMIME("", ".bin"))
}
