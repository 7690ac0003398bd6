// Package sinks contains notify.Sink implementations: structured logging,
// Prometheus counters, and the bounded recent-notice buffer.
package sinks
