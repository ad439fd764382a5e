package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"archive page", "https://apod.nasa.gov/apod/ap240101.html", "apod.nasa.gov"},
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "img.youtube.com/vi/abc/0.jpg", "img.youtube.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if fetchTotal == nil || fetchBytesTotal == nil || entriesTotal == nil ||
		thumbnailsTotal == nil || httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	before := testutil.ToFloat64(fetchTotal.WithLabelValues("metrics-test.example", "success"))
	ObserveFetch("https://metrics-test.example/a", "success", 42, 10*time.Millisecond)
	if val := testutil.ToFloat64(fetchTotal.WithLabelValues("metrics-test.example", "success")); val != before+1 {
		t.Errorf("Expected fetch counter to grow by 1, got %f", val-before)
	}
	if val := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("metrics-test.example")); val < 42 {
		t.Errorf("Expected at least 42 bytes counted, got %f", val)
	}
}

func TestOutcomeCounters(t *testing.T) {
	Init()

	saved := testutil.ToFloat64(entriesTotal.WithLabelValues("saved"))
	ObserveEntry("saved")
	if val := testutil.ToFloat64(entriesTotal.WithLabelValues("saved")); val != saved+1 {
		t.Errorf("Expected entries saved to grow by 1, got %f", val-saved)
	}

	failed := testutil.ToFloat64(thumbnailsTotal.WithLabelValues("failed"))
	ObserveThumbnail("failed")
	if val := testutil.ToFloat64(thumbnailsTotal.WithLabelValues("failed")); val != failed+1 {
		t.Errorf("Expected thumbnails failed to grow by 1, got %f", val-failed)
	}

	attempts := testutil.ToFloat64(thumbnailAttemptsTotal)
	ObserveThumbnailAttempt()
	if val := testutil.ToFloat64(thumbnailAttemptsTotal); val != attempts+1 {
		t.Errorf("Expected attempts to grow by 1, got %f", val-attempts)
	}

	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()
	if val := testutil.ToFloat64(activeWorkers); val < 1 {
		t.Errorf("Expected at least one active worker, got %f", val)
	}
	DecActiveWorkers()
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"https://apod.nasa.gov/apod/", "https://img.youtube.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
