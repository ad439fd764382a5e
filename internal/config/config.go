// Package config loads and validates archiver configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/apod-archiver/internal/apod"
)

// Storage and store providers.
const (
	ProviderMemory   = "memory"
	ProviderLocal    = "local"
	ProviderGCS      = "gcs"
	ProviderPostgres = "postgres"
)

// Config captures all knobs loaded via Viper.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Thumbnail ThumbnailConfig `mapstructure:"thumbnail"`
	Store     StoreConfig     `mapstructure:"store"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// HTTPConfig configures page and image fetching.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
}

// ScrapeConfig governs a date-range run. Empty dates default to the first
// published entry and today.
type ScrapeConfig struct {
	From        string `mapstructure:"from"`
	To          string `mapstructure:"to"`
	Concurrency int    `mapstructure:"concurrency"`
	DelayMs     int    `mapstructure:"delay_ms"`
	Thumbnails  bool   `mapstructure:"thumbnails"`
	UseIndex    bool   `mapstructure:"use_index"`
}

// ThumbnailConfig controls derivation and where thumbnails are written.
type ThumbnailConfig struct {
	Storage        string `mapstructure:"storage"`
	Dir            string `mapstructure:"dir"`
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	Size           int    `mapstructure:"size"`
	Attempts       int    `mapstructure:"attempts"`
	BackoffSeconds int    `mapstructure:"backoff_seconds"`
}

// StoreConfig controls entry persistence.
type StoreConfig struct {
	Provider               string `mapstructure:"provider"`
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
	EnsureSchema           bool   `mapstructure:"ensure_schema"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("APOD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.user_agent", "apod-archiver/0.1 (+https://github.com/JakeFAU/apod-archiver)")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_body_bytes", 64<<20)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("scrape.from", "")
	v.SetDefault("scrape.to", "")
	v.SetDefault("scrape.concurrency", 1)
	v.SetDefault("scrape.delay_ms", 500)
	v.SetDefault("scrape.thumbnails", true)
	v.SetDefault("scrape.use_index", true)
	v.SetDefault("thumbnail.storage", ProviderLocal)
	v.SetDefault("thumbnail.dir", "thumbnails")
	v.SetDefault("thumbnail.bucket", "")
	v.SetDefault("thumbnail.prefix", "")
	v.SetDefault("thumbnail.size", 250)
	v.SetDefault("thumbnail.attempts", 5)
	v.SetDefault("thumbnail.backoff_seconds", 2)
	v.SetDefault("store.provider", ProviderMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.table", "pictures")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("store.max_conn_lifetime_minutes", 30)
	v.SetDefault("store.ensure_schema", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Scrape.Concurrency <= 0 {
		return fmt.Errorf("scrape.concurrency must be > 0")
	}
	if c.Scrape.DelayMs < 0 {
		return fmt.Errorf("scrape.delay_ms must be >= 0")
	}
	if _, _, err := c.Scrape.Range(time.Now()); err != nil {
		return err
	}
	switch c.Thumbnail.Storage {
	case ProviderMemory:
	case ProviderLocal:
		if strings.TrimSpace(c.Thumbnail.Dir) == "" {
			return fmt.Errorf("thumbnail.dir is required for local storage")
		}
	case ProviderGCS:
		if strings.TrimSpace(c.Thumbnail.Bucket) == "" {
			return fmt.Errorf("thumbnail.bucket is required for gcs storage")
		}
	default:
		return fmt.Errorf("unknown thumbnail.storage %q", c.Thumbnail.Storage)
	}
	if c.Thumbnail.Size <= 0 {
		return fmt.Errorf("thumbnail.size must be > 0")
	}
	if c.Thumbnail.Attempts <= 0 {
		return fmt.Errorf("thumbnail.attempts must be > 0")
	}
	switch c.Store.Provider {
	case ProviderMemory:
	case ProviderPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown store.provider %q", c.Store.Provider)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// Range resolves the configured dates. An empty From is the first published
// entry and an empty To is the UTC date of now.
func (s ScrapeConfig) Range(now time.Time) (time.Time, time.Time, error) {
	from, to := apod.FirstEntry, apod.Truncate(now.UTC())
	var err error
	if s.From != "" {
		if from, err = apod.ParseDate(s.From); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("scrape.from: %w", err)
		}
	}
	if s.To != "" {
		if to, err = apod.ParseDate(s.To); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("scrape.to: %w", err)
		}
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("scrape.from %s is after scrape.to %s", apod.DateKey(from), apod.DateKey(to))
	}
	return from, to, nil
}

// Timeout returns the per-request timeout.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Delay returns the politeness delay between requests to one host.
func (c ScrapeConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// Backoff returns the linear backoff step between thumbnail attempts.
func (c ThumbnailConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSeconds) * time.Second
}

// MaxConnLifetime returns the pool connection lifetime.
func (c StoreConfig) MaxConnLifetime() time.Duration {
	return time.Duration(c.MaxConnLifetimeMinutes) * time.Minute
}
