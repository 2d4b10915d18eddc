package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObserveFetch_CountsByOutcome(t *testing.T) {
	c := NewCollector("fetchgate", zap.NewNop())

	c.ObserveFetch("success", 120*time.Millisecond)
	c.ObserveFetch("success", 80*time.Millisecond)
	c.ObserveFetch("failed", 30*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.fetchTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.fetchTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.fetchTotal.WithLabelValues("rejected")))
}

func TestObserveToolCall(t *testing.T) {
	c := NewCollector("fetchgate", zap.NewNop())

	c.ObserveToolCall("fetch", "ok")
	c.ObserveToolCall("fetch", "error")
	c.ObserveToolCall("fetch", "ok")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("fetch", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("fetch", "error")))
}

func TestNilCollector_IsNoop(t *testing.T) {
	var c *Collector
	// must not panic
	c.ObserveFetch("success", time.Second)
	c.ObservePayload(100, 25)
	c.ObserveToolCall("fetch", "ok")
}

func TestCollector_IndependentRegistries(t *testing.T) {
	// Two collectors must not clash: each owns its registry.
	a := NewCollector("fetchgate", zap.NewNop())
	b := NewCollector("fetchgate", zap.NewNop())
	require.NotSame(t, a.Registry(), b.Registry())

	a.ObserveFetch("success", time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(b.fetchTotal.WithLabelValues("success")))
}
