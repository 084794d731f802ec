// Package monitoring provides Prometheus metrics for the application manager.
//
// Metrics cover the HTTP surface, the launch pipeline (launches by result,
// active items, pipeline stage durations), runtime supervision (running apps,
// kill escalations, registration timeouts) and the status router.
package monitoring
