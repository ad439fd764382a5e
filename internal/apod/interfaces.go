package apod

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves the body of a URL. A not-found response maps to ErrNotFound.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// EntryStore persists extracted entries. Save inserts when the entry has no ID
// and updates the existing row otherwise, returning the stored ID.
type EntryStore interface {
	Save(ctx context.Context, entry Entry) (int64, error)
	LookupID(ctx context.Context, date time.Time) (*int64, error)
	Close()
}

// BlobStore persists binary artifacts such as thumbnails.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
