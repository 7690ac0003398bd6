// Package notify carries the transient, user-visible notices raised by the
// dashboard core (errors, warnings, crawl progress). Notices are emitted
// without blocking the caller, batched on a background goroutine, and fanned
// out to pluggable sinks such as structured logs, Prometheus counters, or the
// bounded recent-notice buffer shown by renderers.
package notify
