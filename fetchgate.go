// Package fetchgate provides a top-level convenience entry point for
// embedding the fetch gateway with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/fetchgate"
//
//	gw := fetchgate.New()
//	gw := fetchgate.New(fetchgate.WithLogger(logger))
//	result := gw.Fetch(ctx, "example.com/readme.md")
//
// This is a thin wrapper around [gateway.New]; both produce identical
// results. Use this package when you prefer the shorter import path.
package fetchgate

import (
	"go.uber.org/zap"

	"github.com/BaSui01/fetchgate/config"
	"github.com/BaSui01/fetchgate/gateway"
	"github.com/BaSui01/fetchgate/internal/metrics"
)

// Option configures the gateway created by [New].
type Option func(*settings)

type settings struct {
	cfg    config.FetchConfig
	logger *zap.Logger
	opts   gateway.Options
}

// WithConfig replaces the default fetch configuration.
func WithConfig(cfg config.FetchConfig) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithCollector enables metrics recording on the given collector.
func WithCollector(c *metrics.Collector) Option {
	return func(s *settings) { s.opts.Collector = c }
}

// New creates a [gateway.Gateway] with defaults suitable for direct use:
// hardened HTTPS client, markdown Accept header, no rewrites.
func New(opts ...Option) *gateway.Gateway {
	s := settings{
		cfg:    config.DefaultFetchConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return gateway.New(s.cfg, s.logger, s.opts)
}
