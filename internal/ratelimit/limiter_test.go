package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/apod-archiver/internal/apod"
	"github.com/JakeFAU/apod-archiver/internal/metrics"
)

func init() {
	metrics.Init()
}

func TestLimiterSpacesSameHost(t *testing.T) {
	t.Parallel()

	l := New(Config{Delay: 100 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://apod.nasa.gov/apod/ap240101.html"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://apod.nasa.gov/apod/ap240102.html"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterDifferentHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{Delay: time.Second})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://apod.nasa.gov/apod/ap240101.html"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://img.youtube.com/vi/abc/0.jpg"))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "second host blocked unexpectedly")
}

func TestLimiterZeroDelayIsUnlimited(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	start := time.Now()
	for range 50 {
		require.NoError(t, l.Wait(context.Background(), "https://apod.nasa.gov/"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterHonorsCancellation(t *testing.T) {
	t.Parallel()

	l := New(Config{Delay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Wait(ctx, "https://apod.nasa.gov/"))
	cancel()
	err := l.Wait(ctx, "https://apod.nasa.gov/")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

type countingFetcher struct {
	calls []time.Time
	err   error
}

func (c *countingFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	c.calls = append(c.calls, time.Now())
	return []byte("ok"), c.err
}

func TestWrapPacesFetches(t *testing.T) {
	t.Parallel()

	inner := &countingFetcher{}
	f := New(Config{Delay: 60 * time.Millisecond}).Wrap(inner)

	for range 3 {
		body, err := f.Fetch(context.Background(), "https://apod.nasa.gov/apod/ap240101.html")
		require.NoError(t, err)
		assert.Equal(t, "ok", string(body))
	}
	require.Len(t, inner.calls, 3)
	assert.GreaterOrEqual(t, inner.calls[2].Sub(inner.calls[0]), 100*time.Millisecond)
}

func TestWrapKeepsErrorKinds(t *testing.T) {
	t.Parallel()

	inner := &countingFetcher{err: apod.ErrNotFound}
	f := New(Config{}).Wrap(inner)
	_, err := f.Fetch(context.Background(), "https://apod.nasa.gov/apod/ap990101.html")
	require.ErrorIs(t, err, apod.ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(Config{Delay: time.Hour}).Wrap(inner).Fetch(ctx, "https://apod.nasa.gov/")
	require.ErrorIs(t, err, apod.ErrNetwork)
	require.ErrorIs(t, err, context.Canceled)
}
