package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/apod-archiver/internal/apod"
	"github.com/JakeFAU/apod-archiver/internal/archive"
	"github.com/JakeFAU/apod-archiver/internal/metrics"
)

// EntryReader loads persisted entries.
type EntryReader interface {
	Get(ctx context.Context, date time.Time) (apod.Entry, error)
}

// Extractor extracts an entry straight from the archive.
type Extractor interface {
	Extract(ctx context.Context, idx *archive.Index, date time.Time) (apod.Entry, error)
}

// Server wires HTTP handlers to the archive index and entry store.
type Server struct {
	router    chi.Router
	entries   EntryReader
	extractor Extractor
	index     atomic.Pointer[archive.Index]
	ready     atomic.Bool
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. extractor may be
// nil, which disables live extraction.
func NewServer(entries EntryReader, extractor Extractor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		entries:   entries,
		extractor: extractor,
		logger:    logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/index", s.listIndex)
		r.Get("/index/{date}", s.getIndexEntry)
		r.Get("/entries/{date}", s.getEntry)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetIndex publishes a built index to the handlers and marks the server ready.
func (s *Server) SetIndex(idx *archive.Index) {
	s.index.Store(idx)
	s.ready.Store(true)
}

// MarkReady marks the server ready without an index, for runs that have the
// archive index disabled.
func (s *Server) MarkReady() {
	s.ready.Store(true)
}

// currentIndex writes the error response and returns false when no index is
// available: 503 while it loads, 404 when it is disabled.
func (s *Server) currentIndex(w http.ResponseWriter) (*archive.Index, bool) {
	if idx := s.index.Load(); idx != nil {
		return idx, true
	}
	if s.ready.Load() {
		writeError(w, http.StatusNotFound, "archive index disabled")
		return nil, false
	}
	writeError(w, http.StatusServiceUnavailable, "index not loaded")
	return nil, false
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading index"})
		return
	}
	idx := s.index.Load()
	if idx == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "index": "disabled"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "index": "loaded", "entries": idx.Len()})
}

func (s *Server) listIndex(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.currentIndex(w)
	if !ok {
		return
	}
	from, to := apod.FirstEntry, time.Now().UTC()
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = apod.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = apod.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return
		}
	}
	out := make([]apod.IndexEntry, 0)
	for _, e := range idx.Entries() {
		if !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) getIndexEntry(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	idx, ok := s.currentIndex(w)
	if !ok {
		return
	}
	e, found := idx.Lookup(date)
	if !found {
		writeError(w, http.StatusNotFound, "no entry published on "+apod.DateKey(date))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	entry, err := s.entries.Get(r.Context(), date)
	if errors.Is(err, apod.ErrNotFound) && s.extractor != nil && r.URL.Query().Get("live") == "true" {
		entry, err = s.extractor.Extract(r.Context(), s.index.Load(), date)
	}
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("entry lookup failed", zap.String("date", apod.DateKey(date)), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apod.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apod.ErrParsing), errors.Is(err, apod.ErrHTMLFixing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apod.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func dateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := apod.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Info("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
