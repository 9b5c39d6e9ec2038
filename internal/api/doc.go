// Package api hosts the HTTP server, middleware, and REST handlers for the
// plan service. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /plan for questionnaire submission.
//   - GET /plan/status/{task_id} for polling a background pipeline run.
package api
