package apod

import (
	"fmt"
	"time"
)

// BaseURL is the archive root every relative locator resolves against.
const BaseURL = "https://apod.nasa.gov/apod/"

// IndexPath is the archive listing page, relative to BaseURL.
const IndexPath = "archivepix.html"

// DateLayout is the ISO form used for entry keys.
const DateLayout = "2006-01-02"

// FirstEntry is the date of the earliest published entry.
var FirstEntry = time.Date(1995, time.June, 16, 0, 0, 0, 0, time.UTC)

// Entry is one extracted picture-of-the-day record.
type Entry struct {
	// ID is the persisted key. Nil means the entry has never been stored.
	ID          *int64    `json:"id,omitempty"`
	Date        time.Time `json:"date"`
	ImageURL    string    `json:"img_url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Meta        string    `json:"meta"`
}

// Key returns the ISO date key of the entry.
func (e Entry) Key() string {
	return DateKey(e.Date)
}

// IndexEntry is one line of the archive listing.
type IndexEntry struct {
	Date    time.Time `json:"date"`
	Title   string    `json:"title"`
	Locator string    `json:"locator"`
}

// URL resolves the locator against the archive base.
func (e IndexEntry) URL() string {
	return BaseURL + e.Locator
}

// DateKey formats t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD key into a UTC date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}

// PageLocator returns the relative page name the archive uses for a date.
func PageLocator(t time.Time) string {
	return fmt.Sprintf("ap%02d%02d%02d.html", t.Year()%100, int(t.Month()), t.Day())
}

// PageURL returns the absolute page URL for a date.
func PageURL(t time.Time) string {
	return BaseURL + PageLocator(t)
}

// Truncate drops the clock part of t, keeping its calendar date in UTC.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
