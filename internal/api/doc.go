// Package api hosts the HTTP server, middleware and REST handlers used by the
// serve command. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/apps/{app_id} for the full listing plus ASO report.
//   - GET /v1/apps/{app_id}/fields/{field} and /v1/apps/{app_id}/fields?name=a&name=b
//     for projections.
//   - GET /v1/cache/stats for listing cache counters.
package api
