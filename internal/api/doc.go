// Package api hosts the HTTP status server and its middleware. Routes:
//   - GET /healthz and /readyz for liveness and readiness checks; readiness
//     turns green once the watched page has been seen at least once.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the monitor's current state as JSON.
package api
