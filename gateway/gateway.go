package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/fetchgate/config"
	"github.com/BaSui01/fetchgate/internal/metrics"
	"github.com/BaSui01/fetchgate/internal/tlsutil"
	"github.com/BaSui01/fetchgate/internal/tokencount"
	"github.com/BaSui01/fetchgate/types"
)

// Gateway dispatches normalized fetches and classifies the responses.
// It holds no shared mutable state between invocations, so concurrent use
// needs no coordination; each invocation gets its own result envelope.
type Gateway struct {
	client     *http.Client
	normalizer *Normalizer
	limiter    *rate.Limiter
	counter    tokencount.Counter
	collector  *metrics.Collector
	tracer     trace.Tracer
	logger     *zap.Logger
}

// Options carries optional collaborators. Zero values select defaults:
// a hardened HTTP client bounded by the configured timeout, a tiktoken
// counter, and no metrics.
type Options struct {
	// Client overrides the outbound HTTP client (used by tests).
	Client *http.Client
	// Collector records fetch metrics when non-nil.
	Collector *metrics.Collector
	// Counter estimates payload token cost for logs and metrics.
	Counter tokencount.Counter
}

// New creates a gateway from explicit configuration. No ambient process
// state is consulted; everything the gateway needs arrives here.
func New(cfg config.FetchConfig, logger *zap.Logger, opts Options) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := opts.Client
	if client == nil {
		client = tlsutil.SecureHTTPClient(cfg.Timeout)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	counter := opts.Counter
	if counter == nil {
		counter = tokencount.NewTiktokenCounter("")
	}

	return &Gateway{
		client:     client,
		normalizer: NewNormalizer(cfg),
		limiter:    limiter,
		counter:    counter,
		collector:  opts.Collector,
		tracer:     otel.Tracer("fetchgate/gateway"),
		logger:     logger.With(zap.String("component", "gateway")),
	}
}

// Fetch runs one invocation end to end: normalize, dispatch, classify.
// It always returns exactly one GatewayResult variant; panics and transport
// faults are converted, never propagated.
func (g *Gateway) Fetch(ctx context.Context, rawURL string) (result types.GatewayResult) {
	start := time.Now()

	ctx, span := g.tracer.Start(ctx, "gateway.fetch",
		trace.WithAttributes(attribute.String("fetch.url", rawURL)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			result = types.FailedResult(types.ErrInternal, fmt.Sprintf("fetch panicked: %v", r), nil)
		}
		g.observe(result, rawURL, time.Since(start), span)
	}()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return types.FailedResult(types.ErrRateLimited, "fetch rate limit exceeded", err)
		}
	}

	directive := g.normalizer.Normalize(rawURL)
	span.SetAttributes(attribute.String("fetch.target", directive.URL))

	req, err := http.NewRequestWithContext(ctx, directive.Method, directive.URL, nil)
	if err != nil {
		return types.FailedResult(types.ErrTransport, err.Error(), err)
	}
	req.Header = directive.Header

	resp, err := g.client.Do(req)
	return Classify(resp, err)
}

// observe records metrics, logs, and span status for a finished invocation.
func (g *Gateway) observe(result types.GatewayResult, rawURL string, duration time.Duration, span trace.Span) {
	g.collector.ObserveFetch(string(result.Kind), duration)
	span.SetAttributes(attribute.String("fetch.outcome", string(result.Kind)))

	switch result.Kind {
	case types.ResultSuccess:
		tokens := g.counter.Count(result.Text)
		g.collector.ObservePayload(len(result.Text), tokens)
		g.logger.Debug("fetch succeeded",
			zap.String("url", rawURL),
			zap.Int("bytes", len(result.Text)),
			zap.Int("tokens", tokens),
			zap.Duration("duration", duration),
		)
	case types.ResultRejected:
		g.logger.Debug("fetch rejected",
			zap.String("url", rawURL),
			zap.Duration("duration", duration),
		)
	case types.ResultFailed:
		span.SetStatus(codes.Error, result.Err.Message)
		span.RecordError(result.Err)
		g.logger.Warn("fetch failed",
			zap.String("url", rawURL),
			zap.String("code", string(result.Err.Code)),
			zap.Duration("duration", duration),
			zap.Error(result.Err),
		)
	}
}
