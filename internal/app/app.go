// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/apod-archiver/internal/api"
	"github.com/JakeFAU/apod-archiver/internal/apod"
	"github.com/JakeFAU/apod-archiver/internal/archive"
	"github.com/JakeFAU/apod-archiver/internal/clock/system"
	"github.com/JakeFAU/apod-archiver/internal/config"
	collyfetcher "github.com/JakeFAU/apod-archiver/internal/fetcher/colly"
	"github.com/JakeFAU/apod-archiver/internal/id/uuid"
	"github.com/JakeFAU/apod-archiver/internal/logging"
	"github.com/JakeFAU/apod-archiver/internal/metrics"
	"github.com/JakeFAU/apod-archiver/internal/ratelimit"
	"github.com/JakeFAU/apod-archiver/internal/scraper"
	gcsstore "github.com/JakeFAU/apod-archiver/internal/storage/gcs"
	localstore "github.com/JakeFAU/apod-archiver/internal/storage/local"
	"github.com/JakeFAU/apod-archiver/internal/storage/memory"
	"github.com/JakeFAU/apod-archiver/internal/storage/postgres"
	"github.com/JakeFAU/apod-archiver/internal/thumbnail"
)

// Store persists entries and reads them back by date.
type Store interface {
	apod.EntryStore
	Get(ctx context.Context, date time.Time) (apod.Entry, error)
}

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and passed to the commands that need it.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	fetcher apod.Fetcher
	store   Store
	blobs   apod.BlobStore
	clock   apod.Clock
	thumbs  *thumbnail.Deriver
	runner  *scraper.Runner
	closers []func() error
}

// Option overrides a service NewApp would otherwise build from config.
type Option func(*App)

// WithLogger injects a logger instead of building one from config.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithFetcher injects the page and image fetcher. It is still rate limited.
func WithFetcher(f apod.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithStore injects the entry store.
func WithStore(s Store) Option {
	return func(a *App) { a.store = s }
}

// WithBlobStore injects the thumbnail sink.
func WithBlobStore(b apod.BlobStore) Option {
	return func(a *App) { a.blobs = b }
}

// WithClock injects the clock used for run timing.
func WithClock(c apod.Clock) Option {
	return func(a *App) { a.clock = c }
}

// NewApp creates and initializes the services described by cfg.
// It fails fast if any critical service cannot be initialized.
func NewApp(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		l, err := logging.New(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		a.logger = l
	}
	metrics.Init()
	a.logger.Info("Initializing application services...")

	if a.fetcher == nil {
		a.fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:     cfg.HTTP.UserAgent,
			RespectRobots: cfg.HTTP.RespectRobots,
			Timeout:       cfg.HTTP.Timeout(),
			MaxBodySize:   cfg.HTTP.MaxBodyBytes,
		})
	}
	a.fetcher = ratelimit.New(ratelimit.Config{Delay: cfg.Scrape.Delay()}).Wrap(a.fetcher)

	if a.store == nil {
		store, err := a.buildStore(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
	}
	a.closers = append(a.closers, func() error { a.store.Close(); return nil })

	if a.blobs == nil {
		blobs, err := a.buildBlobStore(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.blobs = blobs
	}

	if a.clock == nil {
		a.clock = system.New()
	}

	a.thumbs = thumbnail.New(a.fetcher, a.blobs, thumbnail.Config{
		Size:        cfg.Thumbnail.Size,
		Attempts:    cfg.Thumbnail.Attempts,
		BackoffStep: cfg.Thumbnail.Backoff(),
		Prefix:      a.localPrefix(),
	}, a.logger)

	a.runner = scraper.New(a.fetcher, a.store, a.thumbs, uuid.New(), a.clock, scraper.Config{
		Concurrency: cfg.Scrape.Concurrency,
		Thumbnails:  cfg.Scrape.Thumbnails,
	}, a.logger)

	a.logger.Info("Application services initialized successfully.",
		zap.String("store", cfg.Store.Provider),
		zap.String("thumbnail_storage", cfg.Thumbnail.Storage),
	)
	return a, nil
}

func (a *App) buildStore(ctx context.Context) (Store, error) {
	switch a.cfg.Store.Provider {
	case config.ProviderMemory:
		a.logger.Info("Using in-memory entry store. Entries are discarded on exit.")
		return memory.NewEntryStore(), nil
	case config.ProviderPostgres:
		a.logger.Info("Connecting to PostgreSQL...", zap.String("table", a.cfg.Store.Table))
		store, err := postgres.NewEntryStore(ctx, postgres.EntryStoreConfig{
			DSN:             a.cfg.Store.DSN,
			Table:           a.cfg.Store.Table,
			MaxConns:        a.cfg.Store.MaxConns,
			MinConns:        a.cfg.Store.MinConns,
			MaxConnLifetime: a.cfg.Store.MaxConnLifetime(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize entry store: %w", err)
		}
		if a.cfg.Store.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				store.Close()
				return nil, fmt.Errorf("failed to ensure schema: %w", err)
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store provider: %s", a.cfg.Store.Provider)
	}
}

func (a *App) buildBlobStore(ctx context.Context) (apod.BlobStore, error) {
	switch a.cfg.Thumbnail.Storage {
	case config.ProviderMemory:
		a.logger.Info("Using in-memory thumbnail storage. Thumbnails are discarded on exit.")
		return memory.NewBlobStore(), nil
	case config.ProviderLocal:
		a.logger.Info("Using local thumbnail storage", zap.String("dir", a.cfg.Thumbnail.Dir))
		blobs, err := localstore.New(localstore.Config{BaseDir: a.cfg.Thumbnail.Dir})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize thumbnail storage: %w", err)
		}
		return blobs, nil
	case config.ProviderGCS:
		a.logger.Info("Using GCS thumbnail storage", zap.String("bucket", a.cfg.Thumbnail.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		blobs, err := gcsstore.New(client, gcsstore.Config{
			Bucket: a.cfg.Thumbnail.Bucket,
			Prefix: a.cfg.Thumbnail.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize thumbnail storage: %w", err)
		}
		return blobs, nil
	default:
		return nil, fmt.Errorf("unknown thumbnail storage: %s", a.cfg.Thumbnail.Storage)
	}
}

// localPrefix returns the object prefix the deriver applies itself. The GCS
// store prefixes object names on its own.
func (a *App) localPrefix() string {
	if a.cfg.Thumbnail.Storage == config.ProviderGCS {
		return ""
	}
	return a.cfg.Thumbnail.Prefix
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Runner returns the date-range scraper.
func (a *App) Runner() *scraper.Runner {
	return a.runner
}

// Thumbnails returns the thumbnail deriver.
func (a *App) Thumbnails() *thumbnail.Deriver {
	return a.thumbs
}

// Store returns the entry store.
func (a *App) Store() Store {
	return a.store
}

// Today returns the current UTC date from the app clock.
func (a *App) Today() time.Time {
	return system.Today(a.clock)
}

// BuildIndex fetches and parses the archive listing. It returns nil without
// error when scrape.use_index is disabled.
func (a *App) BuildIndex(ctx context.Context) (*archive.Index, error) {
	if !a.cfg.Scrape.UseIndex {
		return nil, nil
	}
	idx, err := archive.Build(ctx, a.fetcher)
	if err != nil {
		return nil, fmt.Errorf("build archive index: %w", err)
	}
	a.logger.Info("archive index loaded", zap.Int("entries", idx.Len()))
	return idx, nil
}

// Server builds the ops HTTP API over the entry store and live extraction.
func (a *App) Server() *api.Server {
	return api.NewServer(a.store, a.runner, a.logger)
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	if a.logger != nil {
		a.logger.Info("Shutting down application services...")
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("Error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
