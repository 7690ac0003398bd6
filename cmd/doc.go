// Package cmd implements the hotdash command line.
//
// Architecture overview:
//   - serve: builds internal/server.App, performs the initial load (sources,
//     hotspots, scheduler status), optionally starts the polling loop, and
//     serves the view model over HTTP (JSON snapshot, SSE stream, actions).
//   - One-shot commands (list, crawl, delete, detail, status) build a
//     coordinator over the same backend client and state store, run a single
//     operation, and print the resulting view as a table, JSON or YAML.
//   - Configuration: Viper reads the --config file and HOTDASH_* environment
//     overrides (HOTDASH_BACKEND_BASE_URL, HOTDASH_REFRESH_AUTO, ...); zap
//     provides structured logging to stderr.
//
// Operational notes:
//   - The crawl command only acknowledges the crawl. With --wait it sleeps for
//     crawl.refetch_delay and reloads; a crawl that takes longer shows up on a
//     later list.
//   - delete --all removes every record matching the filter flags, not the
//     whole backend, and requires --yes.
package cmd
