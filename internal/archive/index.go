// Package archive parses the archive listing page into a date-keyed index.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/apod-archiver/internal/apod"
)

const labelLayout = "2006 January 2"

// Index maps publication dates to listing entries. It is immutable once
// built and safe for concurrent readers.
type Index struct {
	entries map[string]apod.IndexEntry
	dates   []time.Time
}

// Build fetches and parses the archive listing.
func Build(ctx context.Context, f apod.Fetcher) (*Index, error) {
	page, err := f.Fetch(ctx, apod.BaseURL+apod.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("fetch archive index: %w", err)
	}
	return Parse(page)
}

// Parse reads "<date label>: <a href=locator>title</a>" lines out of the
// listing page. Links without a parseable date label are ignored.
func Parse(page []byte) (*Index, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: read archive index: %w", apod.ErrParsing, err)
	}

	idx := &Index{entries: make(map[string]apod.IndexEntry)}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		date, ok := parseLabel(precedingText(s.Get(0)))
		if !ok {
			return
		}
		key := apod.DateKey(date)
		if _, dup := idx.entries[key]; dup {
			return
		}
		href, _ := s.Attr("href")
		idx.entries[key] = apod.IndexEntry{
			Date:    date,
			Title:   strings.Join(strings.Fields(s.Text()), " "),
			Locator: strings.TrimSpace(href),
		}
		idx.dates = append(idx.dates, date)
	})
	if len(idx.entries) == 0 {
		return nil, apod.ParsingError("archive index entries")
	}
	sort.Slice(idx.dates, func(i, j int) bool { return idx.dates[i].After(idx.dates[j]) })
	return idx, nil
}

// Lookup returns the listing entry published on date.
func (i *Index) Lookup(date time.Time) (apod.IndexEntry, bool) {
	e, ok := i.entries[apod.DateKey(date)]
	return e, ok
}

// Dates returns every listed date, newest first.
func (i *Index) Dates() []time.Time {
	out := make([]time.Time, len(i.dates))
	copy(out, i.dates)
	return out
}

// Len returns the number of listed entries.
func (i *Index) Len() int {
	return len(i.entries)
}

// Entries returns every listing entry, newest first.
func (i *Index) Entries() []apod.IndexEntry {
	out := make([]apod.IndexEntry, 0, len(i.dates))
	for _, d := range i.dates {
		out = append(out, i.entries[apod.DateKey(d)])
	}
	return out
}

func precedingText(n *html.Node) string {
	if n == nil || n.PrevSibling == nil || n.PrevSibling.Type != html.TextNode {
		return ""
	}
	text := n.PrevSibling.Data
	if i := strings.LastIndex(text, "\n"); i >= 0 && strings.TrimSpace(text[i:]) != "" {
		text = text[i:]
	}
	return text
}

func parseLabel(label string) (time.Time, bool) {
	label = strings.TrimSuffix(strings.TrimSpace(label), ":")
	label = strings.Join(strings.Fields(label), " ")
	if label == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(labelLayout, label, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
