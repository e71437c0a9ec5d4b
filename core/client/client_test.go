package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/studygarden/memquiz/core/endpoint"
	"github.com/studygarden/memquiz/core/model"
	"github.com/studygarden/memquiz/core/transport"
	"github.com/studygarden/memquiz/mocks"
	"github.com/studygarden/memquiz/pkg/kvstore"
	"github.com/studygarden/memquiz/testutils"
)

const (
	endpointA = "https://a.example/exec"
	endpointB = "https://b.example/exec"
	endpointC = "https://c.example/exec"
)

// countingResolver records how often Promote is called.
type countingResolver struct {
	*endpoint.Resolver
	promoted []string
}

func (r *countingResolver) Promote(ctx context.Context, e string) error {
	r.promoted = append(r.promoted, e)
	return r.Resolver.Promote(ctx, e)
}

// newResolverABC returns a resolver with active=A, primary=B, stable=C.
func newResolverABC(t *testing.T) *countingResolver {
	t.Helper()
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "slg_api_base_v1", []byte(endpointA)))
	r := endpoint.NewResolver(context.Background(), endpointB, endpointC, kvstore.NewSlot(store, "slg_api_base_v1"), testutils.NewTestLogger())
	require.Equal(t, []string{endpointA, endpointB, endpointC}, r.Candidates())
	return &countingResolver{Resolver: r}
}

func okResponse(raw string) *transport.Response {
	return &transport.Response{Envelope: transport.Envelope{OK: true}, URL: "https://served.example", Raw: raw}
}

func TestDo_FallsBackAndPromotesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	res := newResolverABC(t)

	gomock.InOrder(
		tr.EXPECT().Attempt(gomock.Any(), endpointA, gomock.Any()).
			Return(nil, &transport.Error{Kind: transport.KindNetwork, Message: "fetch failed: connection refused"}),
		tr.EXPECT().Attempt(gomock.Any(), endpointB, gomock.Any()).
			Return(okResponse(`{"ok":true,"ts":"now"}`), nil),
	)

	c := New(tr, res, WithLogger(testutils.NewTestLogger()))
	pong, resp, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "now", pong.TS)
	assert.Equal(t, "https://served.example", resp.URL)

	assert.Equal(t, []string{endpointB}, res.promoted)
	assert.Equal(t, endpointB, c.Endpoint())
}

func TestDo_AllFailReturnsLastError(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	res := newResolverABC(t)

	last := &transport.Error{Kind: transport.KindHTTP, Message: "HTTP 502 Bad Gateway", Status: 502}
	gomock.InOrder(
		tr.EXPECT().Attempt(gomock.Any(), endpointA, gomock.Any()).Return(nil, &transport.Error{Kind: transport.KindNetwork, Message: "timeout"}),
		tr.EXPECT().Attempt(gomock.Any(), endpointB, gomock.Any()).Return(nil, &transport.Error{Kind: transport.KindJSON, Message: "JSON parse error"}),
		tr.EXPECT().Attempt(gomock.Any(), endpointC, gomock.Any()).Return(nil, last),
	)

	c := New(tr, res, WithLogger(testutils.NewTestLogger()))
	_, err := c.Get(context.Background(), transport.Params{"action": "ping"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, last))
	assert.True(t, transport.IsKind(err, transport.KindHTTP))
	assert.Empty(t, res.promoted)
	assert.Equal(t, endpointA, c.Endpoint())
}

func TestDo_NoCandidates(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	res := endpoint.NewResolver(context.Background(), "", "", nil, testutils.NewTestLogger())

	c := New(tr, res, WithLogger(testutils.NewTestLogger()))
	_, err := c.Get(context.Background(), transport.Params{"action": "ping"})

	var e *transport.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, transport.KindNetwork, e.Kind)
	assert.Equal(t, "no base available", e.Message)
}

func TestDo_InjectsCredentialWithoutMutatingCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	res := endpoint.NewResolver(context.Background(), endpointB, "", nil, testutils.NewTestLogger())

	var got *transport.Request
	tr.EXPECT().Attempt(gomock.Any(), endpointB, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, req *transport.Request) (*transport.Response, error) {
			got = req
			return okResponse(`{"ok":true}`), nil
		})

	c := New(tr, res, WithCredential("token", "s3cret"), WithTimeout(testutils.TestTimeout), WithLogger(testutils.NewTestLogger()))
	params := transport.Params{"action": "ping"}
	_, err := c.Get(context.Background(), params)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "s3cret", got.Params["token"])
	assert.Equal(t, testutils.TestTimeout, got.Timeout)
	assert.Equal(t, transport.MethodGet, got.Method)
	assert.NotContains(t, params, "token")
}

func TestPost_AssemblesActionAndBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	res := endpoint.NewResolver(context.Background(), endpointB, "", nil, testutils.NewTestLogger())

	tr.EXPECT().Attempt(gomock.Any(), endpointB, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, req *transport.Request) (*transport.Response, error) {
			assert.Equal(t, transport.MethodPost, req.Method)
			assert.Equal(t, ActionResetUser, req.Action())
			assert.Equal(t, "u001", req.Body["user_id"])
			assert.Equal(t, DefaultCredentialParam, firstKeyOtherThan(req.Params, "action"))
			return okResponse(`{"ok":true}`), nil
		})

	c := New(tr, res, WithCredential("", "k"), WithLogger(testutils.NewTestLogger()))
	_, err := c.ResetUser(context.Background(), "u001")
	require.NoError(t, err)
}

func firstKeyOtherThan(p transport.Params, skip string) string {
	for k := range p {
		if k != skip {
			return k
		}
	}
	return ""
}

func TestTypedActions_AgainstBackend(t *testing.T) {
	backend := testutils.NewMockBackend(t, testutils.SampleBank())
	backend.SetReview(testutils.SampleBank()[:1])
	res := endpoint.NewResolver(context.Background(), backend.URL(), "", nil, testutils.NewTestLogger())
	c := New(transport.NewHTTPTransport(backend.Server.Client()), res,
		WithTimeout(testutils.TestTimeout), WithLogger(testutils.NewTestLogger()))
	ctx := context.Background()

	set, _, err := c.Questions(ctx, model.Filters{UserID: "u001", Grade: "5"}, 100)
	require.NoError(t, err)
	require.Len(t, set.Data, 3)
	require.NotNil(t, set.Count)
	assert.Equal(t, 3, *set.Count)
	assert.Equal(t, "100", backend.LastQuery(ActionGetQuestions)["limit"])
	assert.NotContains(t, backend.LastQuery(ActionGetQuestions), "unit")

	queue, _, err := c.ReviewQueue(ctx, "u001", 30)
	require.NoError(t, err)
	require.Len(t, queue.Data, 1)
	require.NotNil(t, queue.Meta)
	require.NotNil(t, queue.Meta.TotalActive)
	assert.Equal(t, 1, *queue.Meta.TotalActive)

	result, _, err := c.SubmitAnswer(ctx, "u001", "Q1", 1)
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)
	assert.True(t, result.Recorded)

	_, _, err = c.SubmitAnswer(ctx, "u001", "missing", 0)
	var e *transport.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, transport.KindBackend, e.Kind)
	assert.Equal(t, "Q_NOT_FOUND", e.Code)

	_, err = c.ResetUser(ctx, "u001")
	require.NoError(t, err)
	assert.Equal(t, "u001", backend.LastForm(ActionResetUser)["user_id"])
}
