// Package metrics collects Prometheus metrics for the fetch gateway and the
// tool dispatch layer.
package metrics
