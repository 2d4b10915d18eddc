// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// Collector
// =============================================================================

// Collector records gateway and tool-dispatch metrics on its own registry so
// tests can create collectors without clashing on the global one.
type Collector struct {
	registry *prometheus.Registry

	// Gateway metrics
	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	payloadBytes  prometheus.Histogram
	payloadTokens prometheus.Histogram

	// Tool dispatch metrics
	toolCallsTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(registry)

	c := &Collector{
		registry: registry,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.fetchTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Total fetch invocations by result kind",
		},
		[]string{"outcome"},
	)

	c.fetchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Outbound fetch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	c.payloadBytes = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_payload_bytes",
			Help:      "Size of successful payloads in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
		},
	)

	c.payloadTokens = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_payload_tokens",
			Help:      "Estimated token cost of successful payloads",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		},
	)

	c.toolCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total tool invocations by tool name and status",
		},
		[]string{"tool", "status"},
	)

	return c
}

// ObserveFetch records one completed fetch invocation.
func (c *Collector) ObserveFetch(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.fetchTotal.WithLabelValues(outcome).Inc()
	c.fetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObservePayload records the size and estimated token cost of a successful
// payload.
func (c *Collector) ObservePayload(bytes, tokens int) {
	if c == nil {
		return
	}
	c.payloadBytes.Observe(float64(bytes))
	c.payloadTokens.Observe(float64(tokens))
}

// ObserveToolCall records one tool dispatch.
func (c *Collector) ObserveToolCall(tool, status string) {
	if c == nil {
		return
	}
	c.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

// Handler returns the Prometheus scrape handler for this collector's
// registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
