package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/apod-archiver/internal/apod"
)

// EntryStore provides an in-memory implementation of apod.EntryStore.
type EntryStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]apod.Entry
	byDate map[string]int64
}

// NewEntryStore constructs an EntryStore.
func NewEntryStore() *EntryStore {
	return &EntryStore{
		rows:   make(map[int64]apod.Entry),
		byDate: make(map[string]int64),
	}
}

// Save inserts entries without an ID and updates the row named by ID otherwise.
// Like the unique date column in Postgres, a second insert for the same date fails.
func (s *EntryStore) Save(_ context.Context, entry apod.Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entry.Key()
	if entry.ID == nil {
		if _, exists := s.byDate[key]; exists {
			return 0, fmt.Errorf("entry for %s already exists", key)
		}
		s.nextID++
		id := s.nextID
		entry.ID = &id
		s.rows[id] = entry
		s.byDate[key] = id
		return id, nil
	}

	id := *entry.ID
	old, ok := s.rows[id]
	if !ok {
		return 0, fmt.Errorf("entry %d: %w", id, apod.ErrNotFound)
	}
	if other, taken := s.byDate[key]; taken && other != id {
		return 0, fmt.Errorf("entry for %s already exists", key)
	}
	delete(s.byDate, old.Key())
	stored := entry
	stored.ID = &id
	s.rows[id] = stored
	s.byDate[key] = id
	return id, nil
}

// LookupID returns the ID stored for date, or nil when none exists.
func (s *EntryStore) LookupID(_ context.Context, date time.Time) (*int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDate[apod.DateKey(date)]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

// Get returns the entry stored for date.
func (s *EntryStore) Get(_ context.Context, date time.Time) (apod.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDate[apod.DateKey(date)]
	if !ok {
		return apod.Entry{}, fmt.Errorf("entry %s: %w", apod.DateKey(date), apod.ErrNotFound)
	}
	entry := s.rows[id]
	idCopy := id
	entry.ID = &idCopy
	return entry, nil
}

// Len reports the number of stored entries.
func (s *EntryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Close is a no-op.
func (s *EntryStore) Close() {}
