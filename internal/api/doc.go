// Package api hosts the ops HTTP server for a running crawl. Routes:
//   - GET /healthz and /readyz for probes; readyz counts the store.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/stats for live run counters and store-wide progress.
//   - GET /v1/sources and /v1/recent for per-source counts and the latest documents.
package api
