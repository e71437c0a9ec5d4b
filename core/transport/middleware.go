package transport

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/studygarden/memquiz/pkg/logging"
	"github.com/studygarden/memquiz/pkg/metrics"
)

// Chain creates a single Middleware from a series of middlewares.
// The first middleware is the outermost wrapper.
func Chain(middlewares ...Middleware) Middleware {
	return func(base Transport) Transport {
		for i := len(middlewares) - 1; i >= 0; i-- {
			base = middlewares[i](base)
		}
		return base
	}
}

// loggingTransport logs every attempt at debug level.
type loggingTransport struct {
	Transport
	logger logging.Logger
}

func (t *loggingTransport) Attempt(ctx context.Context, endpoint string, req *Request) (*Response, error) {
	start := time.Now()
	t.logger.Debug("request", "method", req.Method, "endpoint", endpoint, "action", req.Action())
	resp, err := t.Transport.Attempt(ctx, endpoint, req)
	if err != nil {
		t.logger.Debug("request failed", "endpoint", endpoint, "action", req.Action(), "error", err, "elapsed", time.Since(start))
		return nil, err
	}
	t.logger.Debug("response", "url", resp.URL, "action", req.Action(), "elapsed", time.Since(start))
	return resp, nil
}

// LoggingMiddleware creates a middleware that logs transport attempts.
func LoggingMiddleware(logger logging.Logger) Middleware {
	return func(base Transport) Transport {
		return &loggingTransport{Transport: base, logger: logger}
	}
}

// timeoutTransport fills in a default timeout.
type timeoutTransport struct {
	Transport
	timeout time.Duration
}

func (t *timeoutTransport) Attempt(ctx context.Context, endpoint string, req *Request) (*Response, error) {
	if req.Timeout <= 0 && t.timeout > 0 {
		req = req.Clone()
		req.Timeout = t.timeout
	}
	return t.Transport.Attempt(ctx, endpoint, req)
}

// TimeoutMiddleware applies timeout to requests that don't carry their own.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(base Transport) Transport {
		return &timeoutTransport{Transport: base, timeout: timeout}
	}
}

// throttlingTransport rate limits attempts.
type throttlingTransport struct {
	Transport
	limiter *rate.Limiter
}

func (t *throttlingTransport) Attempt(ctx context.Context, endpoint string, req *Request) (*Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("throttled: %v", err), URL: endpoint, Err: err}
	}
	return t.Transport.Attempt(ctx, endpoint, req)
}

// ThrottlingMiddleware creates a middleware for rate limiting attempts.
func ThrottlingMiddleware(r rate.Limit, b int) Middleware {
	limiter := rate.NewLimiter(r, b)
	return func(base Transport) Transport {
		return &throttlingTransport{Transport: base, limiter: limiter}
	}
}

// metricsTransport records every attempt.
type metricsTransport struct {
	Transport
	collector *metrics.Collector
}

func (t *metricsTransport) Attempt(ctx context.Context, endpoint string, req *Request) (*Response, error) {
	start := time.Now()
	resp, err := t.Transport.Attempt(ctx, endpoint, req)
	outcome := "ok"
	if err != nil {
		outcome = "unknown"
		if k, ok := KindOf(err); ok {
			outcome = string(k)
		}
	}
	t.collector.RecordRequest(req.Action(), endpoint, outcome, time.Since(start))
	return resp, err
}

// MetricsMiddleware records attempt counts and latency on collector.
func MetricsMiddleware(collector *metrics.Collector) Middleware {
	return func(base Transport) Transport {
		return &metricsTransport{Transport: base, collector: collector}
	}
}
