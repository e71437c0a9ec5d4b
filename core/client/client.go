// Package client sends backend actions with fallback across endpoints.
package client

import (
	"context"
	"time"

	"github.com/studygarden/memquiz/core/transport"
	"github.com/studygarden/memquiz/pkg/logging"
	"github.com/studygarden/memquiz/pkg/metrics"
)

// DefaultCredentialParam is the query parameter that carries the credential.
const DefaultCredentialParam = "key"

// Resolver supplies candidate endpoints and remembers the one that worked.
type Resolver interface {
	Resolve() string
	Candidates() []string
	Promote(ctx context.Context, endpoint string) error
	Reset(ctx context.Context) error
}

// Client is the request orchestrator. It is safe for concurrent use.
type Client struct {
	transport       transport.Transport
	resolver        Resolver
	credential      string
	credentialParam string
	timeout         time.Duration
	logger          logging.Logger
	metrics         *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithCredential injects credential as param on every request. An empty
// param uses DefaultCredentialParam.
func WithCredential(param, credential string) Option {
	return func(c *Client) {
		if param == "" {
			param = DefaultCredentialParam
		}
		c.credentialParam = param
		c.credential = credential
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records fallbacks on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a Client.
func New(t transport.Transport, r Resolver, opts ...Option) *Client {
	c := &Client{
		transport:       t,
		resolver:        r,
		credentialParam: DefaultCredentialParam,
		logger:          logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "client")
	return c
}

// Endpoint returns the endpoint the next request will try first.
func (c *Client) Endpoint() string {
	return c.resolver.Resolve()
}

// ResetEndpoint forgets the remembered endpoint.
func (c *Client) ResetEndpoint(ctx context.Context) error {
	return c.resolver.Reset(ctx)
}

// Do sends one request, trying each candidate endpoint in order until one
// succeeds. The successful endpoint is promoted. If every candidate fails the
// last error is returned.
func (c *Client) Do(ctx context.Context, method string, params, body transport.Params) (*transport.Response, error) {
	req := c.newRequest(method, params, body)

	candidates := c.resolver.Candidates()
	if len(candidates) == 0 {
		return nil, &transport.Error{Kind: transport.KindNetwork, Message: "no base available"}
	}

	var lastErr error
	for i, endpoint := range candidates {
		if err := ctx.Err(); err != nil && lastErr != nil {
			break
		}
		resp, err := c.transport.Attempt(ctx, endpoint, req)
		if err == nil {
			if perr := c.resolver.Promote(ctx, endpoint); perr != nil {
				c.logger.Warn("failed to remember endpoint", "endpoint", endpoint, "error", perr)
			}
			return resp, nil
		}

		lastErr = err
		kind := "unknown"
		if k, ok := transport.KindOf(err); ok {
			kind = string(k)
		}
		c.metrics.RecordFallback(endpoint, kind)
		c.logger.Warn("endpoint failed",
			"endpoint", endpoint,
			"action", req.Action(),
			"attempt", i+1,
			"of", len(candidates),
			"error", err,
		)
	}
	return nil, lastErr
}

func (c *Client) newRequest(method string, params, body transport.Params) *transport.Request {
	req := &transport.Request{
		Method:  method,
		Params:  params.Clone(),
		Body:    body,
		Timeout: c.timeout,
	}
	if c.credential != "" {
		req.Params[c.credentialParam] = c.credential
	}
	return req
}

// Get sends a GET with params.
func (c *Client) Get(ctx context.Context, params transport.Params) (*transport.Response, error) {
	return c.Do(ctx, transport.MethodGet, params, nil)
}

// Post sends action as a POST with body. extra is merged into the query.
func (c *Client) Post(ctx context.Context, action string, body, extra transport.Params) (*transport.Response, error) {
	params := extra.Clone()
	params["action"] = action
	return c.Do(ctx, transport.MethodPost, params, body)
}

// PingAt pings one endpoint directly. It neither falls back nor promotes.
func (c *Client) PingAt(ctx context.Context, endpoint string) error {
	_, err := c.transport.Attempt(ctx, endpoint, c.newRequest(transport.MethodGet, transport.Params{"action": ActionPing}, nil))
	return err
}
