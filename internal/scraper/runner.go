// Package scraper drives extraction across a range of archive dates.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/apod-archiver/internal/apod"
	"github.com/JakeFAU/apod-archiver/internal/archive"
	"github.com/JakeFAU/apod-archiver/internal/extract"
	"github.com/JakeFAU/apod-archiver/internal/metrics"
)

// Outcome classifies how one date was handled.
type Outcome string

// Outcomes.
const (
	OutcomeSaved    Outcome = "saved"
	OutcomeNotFound Outcome = "not_found"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Thumbnailer derives and stores a thumbnail for an entry image.
type Thumbnailer interface {
	Derive(ctx context.Context, src string, date time.Time) (string, error)
}

// Config controls a run.
type Config struct {
	Concurrency int
	Thumbnails  bool
}

// Result reports the handling of a single date.
type Result struct {
	Date      time.Time
	Outcome   Outcome
	Entry     *apod.Entry
	Thumbnail string
	// Err is the extraction error for skipped or failed dates.
	Err error
	// ThumbnailErr is set when the entry was saved without a thumbnail.
	ThumbnailErr error
}

// Summary aggregates a run.
type Summary struct {
	RunID            string        `json:"run_id"`
	From             string        `json:"from"`
	To               string        `json:"to"`
	Saved            int           `json:"saved"`
	NotFound         int           `json:"not_found"`
	Skipped          int           `json:"skipped"`
	Failed           int           `json:"failed"`
	Thumbnails       int           `json:"thumbnails"`
	ThumbnailsFailed int           `json:"thumbnails_failed"`
	Duration         time.Duration `json:"duration"`
}

// Runner extracts, persists and thumbnails archive entries.
type Runner struct {
	fetcher apod.Fetcher
	store   apod.EntryStore
	thumbs  Thumbnailer
	ids     apod.IDGenerator
	clock   apod.Clock
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Runner. thumbs may be nil when thumbnails are disabled.
func New(
	fetcher apod.Fetcher,
	store apod.EntryStore,
	thumbs Thumbnailer,
	ids apod.IDGenerator,
	clock apod.Clock,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if thumbs == nil {
		cfg.Thumbnails = false
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		fetcher: fetcher,
		store:   store,
		thumbs:  thumbs,
		ids:     ids,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.Named("scraper"),
	}
}

// Extract fetches the page for date and extracts its entry. When idx is not
// nil, dates it does not list are apod.ErrNotFound and its locator names the page.
func (r *Runner) Extract(ctx context.Context, idx *archive.Index, date time.Time) (apod.Entry, error) {
	date = apod.Truncate(date)
	url := apod.PageURL(date)
	if idx != nil {
		listed, ok := idx.Lookup(date)
		if !ok {
			return apod.Entry{}, fmt.Errorf("%w: %s is not indexed", apod.ErrNotFound, apod.DateKey(date))
		}
		url = listed.URL()
	}
	page, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return apod.Entry{}, fmt.Errorf("fetch %s: %w", apod.DateKey(date), err)
	}
	entry, err := extract.Entry(date, string(page))
	if err != nil {
		return apod.Entry{}, fmt.Errorf("extract %s: %w", apod.DateKey(date), err)
	}
	return entry, nil
}

// Process handles one date end to end. The returned error is non-nil only
// when the store failed, which ends the run; every other failure is
// reported in the Result.
func (r *Runner) Process(ctx context.Context, idx *archive.Index, date time.Time) (Result, error) {
	date = apod.Truncate(date)
	log := r.logger.With(zap.String("date", apod.DateKey(date)))
	res := Result{Date: date}

	entry, err := r.Extract(ctx, idx, date)
	switch {
	case err == nil:
	case errors.Is(err, apod.ErrNotFound):
		log.Debug("no entry published")
		res.Outcome = OutcomeNotFound
		metrics.ObserveEntry(string(res.Outcome))
		return res, nil
	case errors.Is(err, apod.ErrParsing), errors.Is(err, apod.ErrHTMLFixing):
		log.Warn("entry skipped", zap.Error(err))
		res.Outcome, res.Err = OutcomeSkipped, err
		metrics.ObserveEntry(string(res.Outcome))
		return res, nil
	default:
		log.Error("entry failed", zap.Error(err))
		res.Outcome, res.Err = OutcomeFailed, err
		metrics.ObserveEntry(string(res.Outcome))
		return res, nil
	}

	existing, err := r.store.LookupID(ctx, date)
	if err != nil {
		return res, fmt.Errorf("lookup %s: %w", apod.DateKey(date), err)
	}
	entry.ID = existing
	id, err := r.store.Save(ctx, entry)
	if err != nil {
		return res, fmt.Errorf("save %s: %w", apod.DateKey(date), err)
	}
	entry.ID = &id
	res.Entry = &entry
	res.Outcome = OutcomeSaved
	metrics.ObserveEntry(string(res.Outcome))
	log.Info("entry saved", zap.Int64("id", id), zap.String("title", entry.Title))

	if r.cfg.Thumbnails {
		res.Thumbnail, res.ThumbnailErr = r.thumbs.Derive(ctx, entry.ImageURL, date)
		r.logThumbnail(log, res.ThumbnailErr)
	}
	return res, nil
}

func (r *Runner) logThumbnail(log *zap.Logger, err error) {
	switch {
	case err == nil:
		metrics.ObserveThumbnail("stored")
	case errors.Is(err, apod.ErrResourceUnsupported):
		metrics.ObserveThumbnail("unsupported")
		log.Info("no thumbnail for source", zap.Error(err))
	default:
		metrics.ObserveThumbnail("failed")
		log.Warn("thumbnail failed", zap.Error(err))
	}
}

// Dates lists the dates a run over [from, to] visits, newest first. With an
// index only listed dates are returned; without one every calendar day is.
func Dates(idx *archive.Index, from, to time.Time) []time.Time {
	from, to = apod.Truncate(from), apod.Truncate(to)
	if from.Before(apod.FirstEntry) {
		from = apod.FirstEntry
	}
	var out []time.Time
	if idx != nil {
		for _, d := range idx.Dates() {
			if !d.Before(from) && !d.After(to) {
				out = append(out, d)
			}
		}
		return out
	}
	for d := to; !d.Before(from); d = d.AddDate(0, 0, -1) {
		out = append(out, d)
	}
	return out
}

// Run processes every date in [from, to] with bounded concurrency. It stops
// at the first store failure or when ctx is canceled.
func (r *Runner) Run(ctx context.Context, idx *archive.Index, from, to time.Time) (Summary, error) {
	runID, err := r.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("start run: %w", err)
	}
	log := r.logger.With(zap.String("run_id", runID))
	dates := Dates(idx, from, to)
	summary := Summary{RunID: runID, From: apod.DateKey(from), To: apod.DateKey(to)}
	started := r.clock.Now()
	log.Info("run started",
		zap.String("from", summary.From),
		zap.String("to", summary.To),
		zap.Int("dates", len(dates)),
		zap.Int("concurrency", r.cfg.Concurrency),
	)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, date := range dates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()
			res, err := r.Process(gctx, idx, date)
			if err != nil {
				return err
			}
			mu.Lock()
			summary.add(res)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	summary.Duration = r.clock.Now().Sub(started)
	fields := []zap.Field{
		zap.Int("saved", summary.Saved),
		zap.Int("not_found", summary.NotFound),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("thumbnails", summary.Thumbnails),
		zap.Duration("duration", summary.Duration),
	}
	if err != nil {
		log.Error("run aborted", append(fields, zap.Error(err))...)
		return summary, fmt.Errorf("run %s: %w", runID, err)
	}
	log.Info("run finished", fields...)
	return summary, nil
}

func (s *Summary) add(res Result) {
	switch res.Outcome {
	case OutcomeSaved:
		s.Saved++
		if res.ThumbnailErr != nil {
			s.ThumbnailsFailed++
		} else if res.Thumbnail != "" {
			s.Thumbnails++
		}
	case OutcomeNotFound:
		s.NotFound++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}
