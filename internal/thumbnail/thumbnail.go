// Package thumbnail derives fixed-size PNG thumbnails from entry image sources.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/JakeFAU/apod-archiver/internal/apod"
	"github.com/JakeFAU/apod-archiver/internal/metrics"
)

const (
	// DefaultSize is the edge length of the square thumbnail in pixels.
	DefaultSize = 250
	// DefaultAttempts bounds the download attempts per thumbnail.
	DefaultAttempts = 5
	// DefaultBackoffStep is multiplied by the attempt number between failures.
	DefaultBackoffStep = 2 * time.Second
	// ContentType is the media type of every stored thumbnail.
	ContentType = "image/png"
)

var (
	videoEmbed     = regexp.MustCompile(`^https?://(?:www\.)?youtube(?:-nocookie)?\.com/embed/([A-Za-z0-9_-]+)`)
	stillImageRoot = []string{"https://apod.nasa.gov/apod/image", "http://apod.nasa.gov/apod/image"}
	interactiveExt = map[string]bool{".swf": true, ".html": true, ".htm": true}
)

// Config controls derivation.
type Config struct {
	Size        int
	Attempts    int
	BackoffStep time.Duration
	// Prefix is prepended to the object name, e.g. "thumbnails/".
	Prefix string
}

// Deriver downloads, crops and stores thumbnails.
type Deriver struct {
	fetcher apod.Fetcher
	sink    apod.BlobStore
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Deriver, filling zero config fields with defaults.
func New(fetcher apod.Fetcher, sink apod.BlobStore, cfg Config, logger *zap.Logger) *Deriver {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = DefaultBackoffStep
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deriver{
		fetcher: fetcher,
		sink:    sink,
		cfg:     cfg,
		logger:  logger.Named("thumbnail"),
	}
}

// ResolveSource maps an entry image source to a downloadable still image.
// Embedded videos resolve to the provider's static preview; archive-hosted
// images are used as-is. Anything else is apod.ErrResourceUnsupported.
func ResolveSource(src string) (string, error) {
	if m := videoEmbed.FindStringSubmatch(src); m != nil {
		return "https://img.youtube.com/vi/" + m[1] + "/0.jpg", nil
	}
	for _, root := range stillImageRoot {
		if !strings.HasPrefix(src, root) {
			continue
		}
		ext := strings.ToLower(path.Ext(strings.SplitN(src, "?", 2)[0]))
		if interactiveExt[ext] {
			break
		}
		return src, nil
	}
	return "", fmt.Errorf("%w: %s", apod.ErrResourceUnsupported, src)
}

// ObjectPath returns the storage path of the thumbnail for date.
func (d *Deriver) ObjectPath(date time.Time) string {
	return d.cfg.Prefix + apod.DateKey(date) + ".png"
}

// Derive resolves src, downloads it with linear backoff, renders the
// thumbnail and stores it. It returns the stored object's URI.
func (d *Deriver) Derive(ctx context.Context, src string, date time.Time) (string, error) {
	resolved, err := ResolveSource(src)
	if err != nil {
		return "", err
	}
	log := d.logger.With(zap.String("date", apod.DateKey(date)), zap.String("source", resolved))

	body, err := d.download(ctx, resolved, log)
	if err != nil {
		return "", err
	}
	png, err := d.render(body)
	if err != nil {
		return "", err
	}
	uri, err := d.sink.PutObject(ctx, d.ObjectPath(date), ContentType, bytes.NewReader(png))
	if err != nil {
		return "", fmt.Errorf("%w: store thumbnail %s: %w", apod.ErrFileSystem, apod.DateKey(date), err)
	}
	log.Debug("thumbnail stored", zap.String("uri", uri))
	return uri, nil
}

func (d *Deriver) download(ctx context.Context, url string, log *zap.Logger) ([]byte, error) {
	var (
		body    []byte
		attempt int
	)
	backoff := retry.WithMaxRetries(uint64(d.cfg.Attempts-1), linearBackoff(d.cfg.BackoffStep))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		metrics.ObserveThumbnailAttempt()
		b, err := d.fetcher.Fetch(ctx, url)
		if err == nil {
			body = b
			return nil
		}
		// A missing image will not appear on retry.
		if errors.Is(err, apod.ErrNotFound) || ctx.Err() != nil {
			return err
		}
		log.Warn("thumbnail download failed", zap.Int("attempt", attempt), zap.Error(err))
		return retry.RetryableError(err)
	})
	if err == nil {
		return body, nil
	}
	if errors.Is(err, apod.ErrNetwork) {
		return nil, fmt.Errorf("download %s after %d attempts: %w", url, attempt, err)
	}
	return nil, fmt.Errorf("%w: download %s after %d attempts: %w", apod.ErrNetwork, url, attempt, err)
}

func (d *Deriver) render(body []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", apod.ErrImage, err)
	}
	thumb := imaging.Fill(img, d.cfg.Size, d.cfg.Size, imaging.Center, imaging.CatmullRom)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: encode: %w", apod.ErrImage, err)
	}
	return buf.Bytes(), nil
}

// linearBackoff waits step, 2*step, 3*step, ... between attempts.
func linearBackoff(step time.Duration) retry.Backoff {
	var n int64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return time.Duration(n) * step, false
	})
}
