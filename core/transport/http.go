package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/proxy"
)

// HTTPClientConfig contains configuration options for the backend HTTP client.
type HTTPClientConfig struct {
	// DialTimeout bounds TCP connection setup. Request deadlines come from
	// Request.Timeout, not from here.
	DialTimeout time.Duration

	// TLSHandshakeTimeout is the maximum amount of time waiting for a TLS handshake.
	TLSHandshakeTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives if set to true.
	DisableKeepAlives bool

	// MaxIdleConns controls the maximum number of idle (keep-alive) connections.
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections to keep per-host.
	MaxIdleConnsPerHost int

	// IdleConnTimeout is the maximum amount of time an idle connection will remain idle before closing.
	IdleConnTimeout time.Duration

	// ProxyURL, when set, routes every connection through a SOCKS5 proxy.
	ProxyURL string
}

// DefaultHTTPClientConfig returns sensible pool settings.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewHTTPClient builds an *http.Client for the backend.
func NewHTTPClient(cfg HTTPClientConfig) (*http.Client, error) {
	base := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 30 * time.Second}

	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           base.DialContext,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		DisableKeepAlives:     cfg.DisableKeepAlives,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	if cfg.ProxyURL != "" {
		u, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		d, err := proxy.FromURL(u, base)
		if err != nil {
			return nil, fmt.Errorf("create proxy dialer: %w", err)
		}
		if cd, ok := d.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return d.Dial(network, addr)
			}
		}
	}

	return &http.Client{Transport: transport}, nil
}

// HTTPTransport performs attempts over HTTP.
type HTTPTransport struct {
	client       *http.Client
	postEncoding string
	userAgent    string
	now          func() time.Time
	seq          atomic.Uint64
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithJSONBodies sends POST bodies as JSON instead of form fields.
func WithJSONBodies() HTTPOption {
	return func(t *HTTPTransport) { t.postEncoding = "json" }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(t *HTTPTransport) { t.userAgent = ua }
}

// WithClock overrides the clock used for the cache-busting nonce.
func WithClock(now func() time.Time) HTTPOption {
	return func(t *HTTPTransport) { t.now = now }
}

// NewHTTPTransport wraps client. A nil client uses http.DefaultClient.
func NewHTTPTransport(client *http.Client, opts ...HTTPOption) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	t := &HTTPTransport{client: client, postEncoding: "form", now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// nonce is the current time in nanoseconds, suffixed with a sequence number
// so identical requests issued within one clock tick still differ.
func (t *HTTPTransport) nonce() string {
	n := t.seq.Add(1)
	return strconv.FormatInt(t.now().UnixNano(), 10) + "-" + strconv.FormatUint(n, 10)
}

// Attempt implements Transport.
func (t *HTTPTransport) Attempt(ctx context.Context, endpoint string, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = MethodGet
	}

	target, err := BuildURL(endpoint, req.Params, t.nonce())
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("invalid endpoint: %v", err), URL: endpoint, Err: err}
	}

	attemptCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	var body io.Reader
	contentType := ""
	if method == MethodPost {
		if t.postEncoding == "json" {
			buf, err := EncodeJSON(req.Body)
			if err != nil {
				return nil, &Error{Kind: KindJSON, Message: fmt.Sprintf("encode body: %v", err), URL: target, Err: err}
			}
			body = bytes.NewReader(buf)
			contentType = "application/json"
		} else {
			body = strings.NewReader(EncodeForm(req.Body))
			contentType = "application/x-www-form-urlencoded"
		}
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, target, body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("build request: %v", err), URL: target, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, attemptCtx, target, "fetch failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, attemptCtx, target, "read failed", err)
	}
	text := string(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusText := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
		return nil, &Error{
			Kind:       KindHTTP,
			Message:    strings.TrimSpace(fmt.Sprintf("HTTP %d %s", resp.StatusCode, statusText)),
			URL:        target,
			Status:     resp.StatusCode,
			StatusText: statusText,
			Body:       truncate(text),
		}
	}

	env, err := parseEnvelope(raw)
	if err != nil {
		return nil, &Error{Kind: KindJSON, Message: "JSON parse error", URL: target, Body: truncate(text), Err: err}
	}
	if env == nil || !env.OK {
		e := &Error{Kind: KindBackend, Message: "api error", URL: target, Body: truncate(text)}
		if env != nil {
			if env.Message != "" {
				e.Message = env.Message
			}
			e.Code = env.ErrorCode
		}
		return nil, e
	}

	return &Response{Envelope: *env, URL: target, Raw: text}, nil
}

// classifyTransportError maps a failed call or read to a network Error.
// A deadline (ours or the caller's) is reported as "timeout"; a cancelled
// caller context as "aborted".
func classifyTransportError(parent, attemptCtx context.Context, target, what string, err error) *Error {
	e := &Error{Kind: KindNetwork, URL: target, Err: err}
	var netErr net.Error
	switch {
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		e.Message = "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		e.Message = "timeout"
	case parent.Err() != nil:
		e.Message = fmt.Sprintf("aborted: %v", parent.Err())
	default:
		e.Message = fmt.Sprintf("%s: %v", what, err)
	}
	return e
}

// parseEnvelope returns nil, nil for a JSON null payload.
func parseEnvelope(raw []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, nil
	}

	env := &Envelope{}
	if v, ok := fields["ok"]; ok {
		var b bool
		if json.Unmarshal(v, &b) == nil {
			env.OK = b
		}
	}
	env.Message = looseString(fields["message"])
	if env.Message == "" {
		env.Message = looseString(fields["error"])
	}
	env.ErrorCode = looseString(fields["error_code"])
	return env, nil
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
