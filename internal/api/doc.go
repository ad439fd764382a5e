// Package api hosts the HTTP server, middleware, and read-only handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for probes; readyz waits for the archive index.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/index and /v1/index/{date} for the parsed archive listing.
//   - GET /v1/entries/{date} for a stored entry, optionally extracted live.
package api
