// Package collyfetcher implements apod.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/apod-archiver/internal/apod"
	"github.com/JakeFAU/apod-archiver/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// MaxBodySize caps the response size in bytes. Zero keeps colly's default.
	MaxBodySize int
	Headers     http.Header
}

// Fetcher implements apod.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type fetchResult struct {
	status int
	body   []byte
	err    error
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	// Clones share the visited set, and the same page may be fetched twice
	// across runs of the same process.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	transport := newHTTPTransport()
	// Clones share the backend client, so transport and timeout are set once.
	c.WithTransport(transport)
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c.SetRequestTimeout(timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly and returns the body. A 404
// maps to apod.ErrNotFound; every other failure wraps apod.ErrNetwork.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var result fetchResult
	collector := f.buildCollector(&result)

	start := time.Now()
	body, err := f.runCollector(ctx, collector, url, &result)
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, apod.ErrNotFound):
		status = "not_found"
	default:
		status = "error"
	}
	metrics.ObserveFetch(url, status, len(body), time.Since(start))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) buildCollector(result *fetchResult) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	if f.cfg.MaxBodySize > 0 {
		collector.MaxBodySize = f.cfg.MaxBodySize
	}
	f.configureCollectorHooks(collector, result)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *fetchResult) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.status = r.StatusCode
		}
		result.err = err
	})
}

// runCollector reads result only after Visit returns; on cancellation the
// visit goroutine may still write to it.
func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	url string,
	result *fetchResult,
) ([]byte, error) {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: colly fetch canceled: %w", apod.ErrNetwork, ctx.Err())
	case err := <-done:
		if result.status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", apod.ErrNotFound, url)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: colly visit %s: %w", apod.ErrNetwork, url, err)
		}
		if result.err != nil {
			return nil, fmt.Errorf("%w: colly response %s: %w", apod.ErrNetwork, url, result.err)
		}
		return result.body, nil
	}
}

func (f *Fetcher) copyHeaders(r *colly.Request) {
	if f.cfg.Headers == nil {
		return
	}
	for key, values := range f.cfg.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
