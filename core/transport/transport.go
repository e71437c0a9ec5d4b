//go:generate mockgen -package=mocks -destination=../../mocks/mock_transport.go github.com/studygarden/memquiz/core/transport Transport

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Transport performs a single request against a single endpoint.
// Implementations never retry; fallback across endpoints belongs to the caller.
type Transport interface {
	// Attempt returns a parsed, successful response or a *Error.
	Attempt(ctx context.Context, endpoint string, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, endpoint string, req *Request) (*Response, error)

// Attempt calls f.
func (f TransportFunc) Attempt(ctx context.Context, endpoint string, req *Request) (*Response, error) {
	return f(ctx, endpoint, req)
}

// Middleware is a function that wraps a Transport to add functionality.
type Middleware func(transport Transport) Transport

// Params are query parameters or form fields. Nil values are always dropped;
// blank strings are dropped from query parameters.
type Params map[string]any

// Clone returns a shallow copy, never nil.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Request describes one backend call.
type Request struct {
	Method  string
	Params  Params
	Body    Params
	Timeout time.Duration
}

// Action returns the action parameter, if any.
func (r *Request) Action() string {
	if r == nil || r.Params == nil {
		return ""
	}
	if s, ok := stringify(r.Params["action"]); ok {
		return s
	}
	return ""
}

// Clone copies the request so middleware can adjust it without touching the caller's.
func (r *Request) Clone() *Request {
	c := *r
	c.Params = r.Params.Clone()
	if r.Body != nil {
		c.Body = r.Body.Clone()
	}
	return &c
}

// Envelope is the part of every backend response the transport inspects.
type Envelope struct {
	OK        bool
	Message   string
	ErrorCode string
}

// Response is a successful backend reply.
type Response struct {
	Envelope Envelope
	// URL is the final URL used, nonce included.
	URL string
	// Raw is the response text.
	Raw string
}

// Decode unmarshals the raw payload into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal([]byte(r.Raw), v); err != nil {
		return &Error{Kind: KindJSON, Message: fmt.Sprintf("decode payload: %v", err), URL: r.URL, Body: truncate(r.Raw), Err: err}
	}
	return nil
}

const (
	MethodGet  = http.MethodGet
	MethodPost = http.MethodPost
)
