package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/apod-archiver/internal/apod"
	"github.com/JakeFAU/apod-archiver/internal/archive"
	"github.com/JakeFAU/apod-archiver/internal/storage/memory"
)

const listing = `<b>
2024 January 02:  <a href="ap240102.html">A Dark Wisp</a><br>
2024 January 01:  <a href="ap240101.html">NGC 1232</a><br>
2021 February 22:  <a href="ap210222.html">Perseverance Lands</a><br>
</b>`

type stubExtractor struct {
	entry apod.Entry
	err   error
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, _ *archive.Index, date time.Time) (apod.Entry, error) {
	s.calls++
	if s.err != nil {
		return apod.Entry{}, s.err
	}
	e := s.entry
	e.Date = date
	return e, nil
}

func newTestServer(t *testing.T, extractor Extractor) (*Server, *memory.EntryStore) {
	t.Helper()
	store := memory.NewEntryStore()
	return NewServer(store, extractor, zap.NewNop()), store
}

func loadIndex(t *testing.T, srv *Server) {
	t.Helper()
	idx, err := archive.Parse([]byte(listing))
	require.NoError(t, err)
	srv.SetIndex(idx)
}

func do(t *testing.T, srv *Server, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, body := do(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzWaitsForIndex(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, _ := do(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	loadIndex(t, srv)
	rec, body := do(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "loaded", body["index"])
	assert.EqualValues(t, 3, body["entries"])
}

func TestReadyzWithIndexDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, body := do(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "loading index", body["status"])

	srv.MarkReady()

	rec, body = do(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "disabled", body["index"])

	rec, _ = do(t, srv, "/v1/index")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, srv, "/v1/index/2024-01-01")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListIndex(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, _ := do(t, srv, "/v1/index")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	loadIndex(t, srv)

	rec, body := do(t, srv, "/v1/index")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["entries"], 3)

	rec, body = do(t, srv, "/v1/index?from=2024-01-01")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := body["entries"].([]any)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]any)
	assert.Equal(t, "ap240102.html", first["locator"])

	rec, body = do(t, srv, "/v1/index?from=2021-01-01&to=2021-12-31")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["entries"], 1)

	rec, _ = do(t, srv, "/v1/index?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, srv, "/v1/index?to=2024-13-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetIndexEntry(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	loadIndex(t, srv)

	rec, body := do(t, srv, "/v1/index/2021-02-22")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Perseverance Lands", body["title"])

	rec, _ = do(t, srv, "/v1/index/2021-02-23")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, srv, "/v1/index/not-a-date")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEntryFromStore(t *testing.T) {
	srv, store := newTestServer(t, nil)
	date := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.Save(context.Background(), apod.Entry{
		Date:     date,
		ImageURL: "https://apod.nasa.gov/apod/image/2401/NGC1232.jpg",
		Title:    "NGC 1232",
	})
	require.NoError(t, err)

	rec, body := do(t, srv, "/v1/entries/2024-01-01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NGC 1232", body["title"])
	assert.NotNil(t, body["id"])

	rec, body = do(t, srv, "/v1/entries/2024-01-02")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, body["error"])
}

func TestGetEntryLiveExtraction(t *testing.T) {
	extractor := &stubExtractor{entry: apod.Entry{Title: "Live"}}
	srv, _ := newTestServer(t, extractor)
	loadIndex(t, srv)

	rec, _ := do(t, srv, "/v1/entries/2024-01-02")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, extractor.calls)

	rec, body := do(t, srv, "/v1/entries/2024-01-02?live=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Live", body["title"])
	assert.Equal(t, 1, extractor.calls)
}

func TestGetEntryErrorMapping(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("page: %w", apod.ErrNotFound), http.StatusNotFound},
		{"parsing", apod.ParsingError("Explanation"), http.StatusUnprocessableEntity},
		{"html fixing", &apod.HTMLFixingError{Reason: "unbalanced tags", Fragment: "<b>"}, http.StatusUnprocessableEntity},
		{"network", fmt.Errorf("%w: reset", apod.ErrNetwork), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &stubExtractor{err: tc.err})
			rec, _ := do(t, srv, "/v1/entries/2024-01-02?live=true")
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRecoverMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}
	rw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, rw.status)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(requestIDKey{}).(string)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}
