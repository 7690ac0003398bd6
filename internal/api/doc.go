// Package api serves the dashboard view model to renderers. Notable routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/view for the current snapshot (with an ETag for If-None-Match
//     revalidation) and GET /v1/events for a server-sent event stream of
//     snapshots and notices.
//   - POST/PUT/DELETE under /v1 for the dashboard operations (filter, crawl,
//     refresh, auto-refresh, selection, deletes, detail).
package api
