package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studygarden/memquiz/core/client"
	"github.com/studygarden/memquiz/core/endpoint"
	"github.com/studygarden/memquiz/core/model"
	"github.com/studygarden/memquiz/core/transport"
	"github.com/studygarden/memquiz/pkg/kvstore"
	"github.com/studygarden/memquiz/testutils"
)

const (
	endpointKey = "slg_api_base_v1"
	sessionKey  = "slg_v1"
	testDelay   = 20 * time.Millisecond
)

type status struct {
	text     string
	severity Severity
}

// recorder is a Presenter that remembers everything pushed to it.
type recorder struct {
	mu        sync.Mutex
	filters   model.Filters
	chosen    int
	hasChosen bool

	endpoint  string
	statuses  []status
	labels    []string
	empties   []string
	questions []QuestionView
	results   []Result
	traces    []Trace
	progress  Progress
	mode      Mode
}

func (r *recorder) choose(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chosen, r.hasChosen = i, true
}

func (r *recorder) setFilters(f model.Filters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = f
}

func (r *recorder) Filters() model.Filters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filters
}

func (r *recorder) ChosenAnswer() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chosen, r.hasChosen
}

func (r *recorder) SetEndpointLabel(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoint = e
}

func (r *recorder) SetStatus(text string, sev Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status{text, sev})
}

func (r *recorder) SetProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = p
}

func (r *recorder) SetSessionLabel(l string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = append(r.labels, l)
}

func (r *recorder) SetMode(m Mode, _ *model.ReviewMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = m
}

func (r *recorder) RenderQuestion(q QuestionView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions = append(r.questions, q)
}

func (r *recorder) RenderEmpty(hint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.empties = append(r.empties, hint)
}

func (r *recorder) RenderList([]model.Question, int) {}

func (r *recorder) ShowResult(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) RenderDebug(t Trace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, t)
}

func (r *recorder) lastStatus() status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return status{}
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *recorder) lastResult() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return Result{}
	}
	return r.results[len(r.results)-1]
}

func (r *recorder) lastLabel() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.labels) == 0 {
		return ""
	}
	return r.labels[len(r.labels)-1]
}

func (r *recorder) hasTraceError(action, substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.traces {
		if t.Action == action && strings.Contains(t.Error, substr) {
			return true
		}
	}
	return false
}

// fixture is an engine wired to a MockBackend through the real client stack.
type fixture struct {
	engine    *Engine
	presenter *recorder
	backend   *testutils.MockBackend
	store     *kvstore.MemoryStore
}

func newFixture(t *testing.T, delay time.Duration) *fixture {
	t.Helper()
	backend := testutils.NewMockBackend(t, testutils.SampleBank())
	store := kvstore.NewMemoryStore()
	e, p := newEngineOn(t, backend.URL(), backend, store, delay)
	return &fixture{engine: e, presenter: p, backend: backend, store: store}
}

// newEngineOn builds an engine whose primary endpoint is base. An optional
// extra endpoint is used as the stable one.
func newEngineOn(t *testing.T, base string, backend *testutils.MockBackend, store kvstore.Store, delay time.Duration, endpoints ...string) (*Engine, *recorder) {
	t.Helper()
	ctx := context.Background()
	logger := testutils.NewTestLogger()

	stable := ""
	if len(endpoints) > 0 {
		stable = endpoints[0]
	}
	res := endpoint.NewResolver(ctx, base, stable, kvstore.NewSlot(store, endpointKey), logger)

	httpClient := transport.NewHTTPTransport(nil)
	if backend != nil {
		httpClient = transport.NewHTTPTransport(backend.Server.Client())
	}
	api := client.New(httpClient, res, client.WithTimeout(time.Second), client.WithLogger(logger))

	p := &recorder{}
	p.setFilters(model.Filters{UserID: "u001"})
	e := New(ctx, api, p, kvstore.NewSlot(store, sessionKey),
		Config{UserID: "u001", AutoAdvanceDelay: delay}, WithLogger(logger))
	return e, p
}

// fakeAPI answers from memory. Submit outcomes are taken from outcomes in order.
type fakeAPI struct {
	mu        sync.Mutex
	questions []model.Question
	outcomes  []bool
	submitted int
	loadErr   error
	resetErr  error
}

func (f *fakeAPI) Endpoint() string                    { return "https://fake.example/exec" }
func (f *fakeAPI) ResetEndpoint(context.Context) error { return nil }
func (f *fakeAPI) Ping(context.Context) (*model.Pong, *transport.Response, error) {
	return &model.Pong{TS: "now"}, &transport.Response{}, nil
}

func (f *fakeAPI) Questions(context.Context, model.Filters, int) (*model.QuestionSet, *transport.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, nil, f.loadErr
	}
	return &model.QuestionSet{Data: append([]model.Question(nil), f.questions...)}, &transport.Response{}, nil
}

func (f *fakeAPI) ReviewQueue(context.Context, string, int) (*model.ReviewQueue, *transport.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &model.ReviewQueue{Data: append([]model.Question(nil), f.questions...)}, &transport.Response{}, nil
}

func (f *fakeAPI) SubmitAnswer(context.Context, string, string, int) (*model.AnswerResult, *transport.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	correct := f.outcomes[f.submitted%len(f.outcomes)]
	f.submitted++
	return &model.AnswerResult{IsCorrect: correct, Recorded: true}, &transport.Response{}, nil
}

func (f *fakeAPI) ResetUser(context.Context, string) (*transport.Response, error) {
	return &transport.Response{}, f.resetErr
}

func questions(n int) []model.Question {
	out := make([]model.Question, n)
	for i := range out {
		out[i] = model.Question{ID: "F" + string(rune('A'+i)), Stem: "stem", Options: model.Options{"x", "y"}}
	}
	return out
}

func requireIndex(t *testing.T, e *Engine, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return e.State().Index == want },
		testutils.TestTimeout, testutils.TestInterval, "index never reached %d", want)
}
