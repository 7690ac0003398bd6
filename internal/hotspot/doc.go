// Package hotspot defines the records, catalog, scheduler status, and filter
// criteria shared by the backend client, the state store, and the dashboard
// coordinator. Criteria also owns the mapping from filter state to backend
// query parameters.
package hotspot
