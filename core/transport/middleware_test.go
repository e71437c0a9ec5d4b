package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/studygarden/memquiz/pkg/metrics"
	"github.com/studygarden/memquiz/testutils"
)

func okTransport(seen *[]*Request) Transport {
	return TransportFunc(func(ctx context.Context, endpoint string, req *Request) (*Response, error) {
		if seen != nil {
			*seen = append(*seen, req)
		}
		return &Response{Envelope: Envelope{OK: true}, URL: endpoint}, nil
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Transport) Transport {
			return TransportFunc(func(ctx context.Context, endpoint string, req *Request) (*Response, error) {
				order = append(order, name)
				return next.Attempt(ctx, endpoint, req)
			})
		}
	}

	tr := Chain(mark("outer"), mark("inner"))(okTransport(nil))
	_, err := tr.Attempt(context.Background(), "http://a", &Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestTimeoutMiddleware_FillsDefaultOnly(t *testing.T) {
	var seen []*Request
	tr := TimeoutMiddleware(3 * time.Second)(okTransport(&seen))

	orig := &Request{Params: Params{"action": "ping"}}
	_, err := tr.Attempt(context.Background(), "http://a", orig)
	require.NoError(t, err)
	_, err = tr.Attempt(context.Background(), "http://a", &Request{Timeout: time.Second})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, 3*time.Second, seen[0].Timeout)
	assert.Zero(t, orig.Timeout, "caller's request must not be modified")
	assert.Equal(t, time.Second, seen[1].Timeout)
}

func TestLoggingMiddleware_PassesThrough(t *testing.T) {
	boom := &Error{Kind: KindHTTP, Message: "HTTP 500"}
	failing := TransportFunc(func(ctx context.Context, endpoint string, req *Request) (*Response, error) {
		return nil, boom
	})

	tr := LoggingMiddleware(testutils.NewTestLogger())(failing)
	_, err := tr.Attempt(context.Background(), "http://a", &Request{Params: Params{"action": "ping"}})
	assert.True(t, errors.Is(err, boom))

	tr = LoggingMiddleware(testutils.NewTestLogger())(okTransport(nil))
	resp, err := tr.Attempt(context.Background(), "http://a", &Request{})
	require.NoError(t, err)
	assert.Equal(t, "http://a", resp.URL)
}

func TestThrottlingMiddleware(t *testing.T) {
	tr := ThrottlingMiddleware(rate.Every(time.Hour), 1)(okTransport(nil))

	_, err := tr.Attempt(context.Background(), "http://a", &Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = tr.Attempt(ctx, "http://a", &Request{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork))
	assert.Contains(t, err.Error(), "throttled")
}

func TestMetricsMiddleware(t *testing.T) {
	c := metrics.New()
	fail := TransportFunc(func(ctx context.Context, endpoint string, req *Request) (*Response, error) {
		return nil, &Error{Kind: KindBackend, Message: "bad request"}
	})

	_, _ = MetricsMiddleware(c)(okTransport(nil)).Attempt(context.Background(), "http://a", &Request{Params: Params{"action": "ping"}})
	_, _ = MetricsMiddleware(c)(fail).Attempt(context.Background(), "http://b", &Request{Params: Params{"action": "ping"}})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `memquiz_requests_total{action="ping",endpoint="http://a",outcome="ok"} 1`)
	assert.Contains(t, body, `memquiz_requests_total{action="ping",endpoint="http://b",outcome="backend"} 1`)
}
