package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/apod-archiver/internal/apod"
	"github.com/JakeFAU/apod-archiver/internal/clock/system"
	"github.com/JakeFAU/apod-archiver/internal/config"
	"github.com/JakeFAU/apod-archiver/internal/storage/memory"
)

const listing = `<b>
2024 January 01:  <a href="ap240101.html">NGC 1232</a><br>
</b>`

const entryPage = `<html><body>
<center><h1>Astronomy Picture of the Day</h1>
<a href="image/2401/NGC1232_big.jpg"><IMG SRC="image/2401/NGC1232.jpg"></a></center>
<center><b> NGC 1232 </b> <br> <b>Image Credit:</b> ESO</center>
<p> <b> Explanation: </b> A grand design spiral galaxy. <p>
</body></html>`

type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", apod.ErrNetwork, err)
	}
	body, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apod.ErrNotFound, url)
	}
	return body, nil
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for x := 0; x < 400; x++ {
		for y := 0; y < 300; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testConfig() config.Config {
	return config.Config{
		HTTP:   config.HTTPConfig{UserAgent: "test", TimeoutSeconds: 5},
		Scrape: config.ScrapeConfig{Concurrency: 2, Thumbnails: true, UseIndex: true},
		Thumbnail: config.ThumbnailConfig{
			Storage:        config.ProviderMemory,
			Size:           250,
			Attempts:       2,
			BackoffSeconds: 1,
		},
		Store:   config.StoreConfig{Provider: config.ProviderMemory, Table: "pictures"},
		Server:  config.ServerConfig{Port: 8080},
		Logging: config.LoggingConfig{Level: "info"},
	}
}

func testFetcher(t *testing.T) mapFetcher {
	return mapFetcher{
		apod.BaseURL + apod.IndexPath:               []byte(listing),
		apod.BaseURL + "ap240101.html":              []byte(entryPage),
		apod.BaseURL + "image/2401/NGC1232.jpg":     testImage(t),
		apod.BaseURL + "image/2401/NGC1232_big.jpg": testImage(t),
	}
}

func TestNewAppMemoryProviders(t *testing.T) {
	a, err := NewApp(context.Background(), testConfig(), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Logger())
	assert.IsType(t, &memory.EntryStore{}, a.Store())
	assert.NotNil(t, a.Runner())
	assert.NotNil(t, a.Thumbnails())
	assert.NotNil(t, a.Server())
	assert.Equal(t, 2, a.Config().Scrape.Concurrency)
}

func TestNewAppLocalThumbnails(t *testing.T) {
	cfg := testConfig()
	cfg.Thumbnail.Storage = config.ProviderLocal
	cfg.Thumbnail.Dir = filepath.Join(t.TempDir(), "thumbs")
	cfg.Thumbnail.Prefix = "small/"

	a, err := NewApp(context.Background(), cfg, WithLogger(zap.NewNop()), WithFetcher(testFetcher(t)))
	require.NoError(t, err)
	defer a.Close()

	date := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	loc, err := a.Thumbnails().Derive(context.Background(), apod.BaseURL+"image/2401/NGC1232.jpg", date)
	require.NoError(t, err)

	want := filepath.Join(cfg.Thumbnail.Dir, "small", "2024-01-01.png")
	assert.Equal(t, "file://"+want, loc)
	_, err = os.Stat(want)
	assert.NoError(t, err)
}

func TestNewAppUnknownProviders(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Provider = "sqlite"
	_, err := NewApp(context.Background(), cfg, WithLogger(zap.NewNop()))
	require.ErrorContains(t, err, "unknown store provider")

	cfg = testConfig()
	cfg.Thumbnail.Storage = "s3"
	_, err = NewApp(context.Background(), cfg, WithLogger(zap.NewNop()))
	require.ErrorContains(t, err, "unknown thumbnail storage")
}

func TestNewAppInvalidLogLevel(t *testing.T) {
	cfg := testConfig()
	cfg.Logging.Level = "chatty"
	_, err := NewApp(context.Background(), cfg)
	require.ErrorContains(t, err, "init logger")
}

func TestBuildIndexAndRun(t *testing.T) {
	blobs := memory.NewBlobStore()
	store := memory.NewEntryStore()
	now := time.Date(2024, time.January, 2, 15, 0, 0, 0, time.UTC)
	a, err := NewApp(context.Background(), testConfig(),
		WithLogger(zap.NewNop()),
		WithFetcher(testFetcher(t)),
		WithStore(store),
		WithBlobStore(blobs),
		WithClock(system.Fixed{T: now}),
	)
	require.NoError(t, err)
	defer a.Close()

	idx, err := a.BuildIndex(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())

	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	summary, err := a.Runner().Run(context.Background(), idx, from, a.Today())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Saved)
	assert.Equal(t, 1, summary.Thumbnails)

	entry, err := store.Get(context.Background(), from)
	require.NoError(t, err)
	assert.Equal(t, "NGC 1232", entry.Title)
	assert.Equal(t, apod.BaseURL+"image/2401/NGC1232.jpg", entry.ImageURL)

	_, contentType, ok := blobs.Object("2024-01-01.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", contentType)
}

func TestBuildIndexDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Scrape.UseIndex = false
	a, err := NewApp(context.Background(), cfg, WithLogger(zap.NewNop()), WithFetcher(mapFetcher{}))
	require.NoError(t, err)
	defer a.Close()

	idx, err := a.BuildIndex(context.Background())
	require.NoError(t, err)
	assert.Nil(t, idx)
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := NewApp(context.Background(), testConfig(), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	a.Close()
	a.Close()
}
