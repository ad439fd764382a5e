// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/apod-archiver/internal/apod"
)

const defaultTable = "pictures"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// EntryStoreConfig controls the Postgres connection pool used for entry rows.
type EntryStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// EntryStore writes extracted entries into Postgres.
type EntryStore struct {
	pool  querier
	table string
}

// NewEntryStore creates a Postgres-backed EntryStore using the provided config.
func NewEntryStore(ctx context.Context, cfg EntryStoreConfig) (*EntryStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &EntryStore{pool: pool, table: table}, nil
}

// NewEntryStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewEntryStoreWithPool(pool querier, table string) (*EntryStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &EntryStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *EntryStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the entry table when it does not exist.
func (s *EntryStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id SERIAL PRIMARY KEY,
	date DATE NOT NULL UNIQUE,
	img_url TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	meta TEXT NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Save inserts entry when it has no ID and updates the row with that ID
// otherwise. It returns the stored ID.
func (s *EntryStore) Save(ctx context.Context, entry apod.Entry) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("entry store is not configured")
	}
	date := apod.Truncate(entry.Date)
	if entry.ID == nil {
		query := fmt.Sprintf(`
INSERT INTO %s (date, img_url, title, description, meta)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`, s.table)
		var id int64
		err := s.pool.QueryRow(ctx, query, date, entry.ImageURL, entry.Title, entry.Description, entry.Meta).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert entry %s: %w", entry.Key(), err)
		}
		return id, nil
	}

	query := fmt.Sprintf(`
UPDATE %s
SET date = $1, img_url = $2, title = $3, description = $4, meta = $5
WHERE id = $6`, s.table)
	tag, err := s.pool.Exec(ctx, query, date, entry.ImageURL, entry.Title, entry.Description, entry.Meta, *entry.ID)
	if err != nil {
		return 0, fmt.Errorf("update entry %d: %w", *entry.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return 0, fmt.Errorf("update entry %d: %w", *entry.ID, apod.ErrNotFound)
	}
	return *entry.ID, nil
}

// LookupID returns the ID stored for date, or nil when no row exists.
func (s *EntryStore) LookupID(ctx context.Context, date time.Time) (*int64, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE date = $1`, s.table)
	var id int64
	err := s.pool.QueryRow(ctx, query, apod.Truncate(date)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup entry %s: %w", apod.DateKey(date), err)
	}
	return &id, nil
}

// Get returns the entry stored for date.
func (s *EntryStore) Get(ctx context.Context, date time.Time) (apod.Entry, error) {
	query := fmt.Sprintf(`SELECT id, date, img_url, title, description, meta FROM %s WHERE date = $1`, s.table)
	var (
		id    int64
		entry apod.Entry
	)
	err := s.pool.QueryRow(ctx, query, apod.Truncate(date)).
		Scan(&id, &entry.Date, &entry.ImageURL, &entry.Title, &entry.Description, &entry.Meta)
	if errors.Is(err, pgx.ErrNoRows) {
		return apod.Entry{}, fmt.Errorf("entry %s: %w", apod.DateKey(date), apod.ErrNotFound)
	}
	if err != nil {
		return apod.Entry{}, fmt.Errorf("get entry %s: %w", apod.DateKey(date), err)
	}
	entry.ID = &id
	entry.Date = apod.Truncate(entry.Date)
	return entry, nil
}
