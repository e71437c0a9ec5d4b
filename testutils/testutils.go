package testutils

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	socks5 "github.com/armon/go-socks5"
	"github.com/stretchr/testify/require"

	"github.com/studygarden/memquiz/core/model"
)

// TestTimeout is the default timeout for operations in tests.
const TestTimeout = 5 * time.Second

// TestInterval is the default interval for polling in tests.
const TestInterval = 10 * time.Millisecond

// BankQuestion is a question plus its answer key for MockBackend.
type BankQuestion struct {
	model.Question
	Answer int
}

// MockBackend is an httptest server speaking the quiz action protocol.
type MockBackend struct {
	Server *httptest.Server

	mu          sync.Mutex
	questions   []BankQuestion
	review      []BankQuestion
	calls       []recordedCall
	resetFails  bool
	failActions map[string]int
	hits        atomic.Int64
}

type recordedCall struct {
	Method string
	Action string
	Query  map[string]string
	Form   map[string]string
}

// NewMockBackend starts a backend serving questions. It is closed on test cleanup.
func NewMockBackend(t *testing.T, questions []BankQuestion) *MockBackend {
	t.Helper()
	b := &MockBackend{questions: questions, failActions: make(map[string]int)}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the endpoint URL.
func (b *MockBackend) URL() string {
	return b.Server.URL + "/exec"
}

// SetReview sets the getEcsQueue payload.
func (b *MockBackend) SetReview(qs []BankQuestion) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.review = qs
}

// FailResetUser makes resetUser reply with ok:false.
func (b *MockBackend) FailResetUser() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetFails = true
}

// FailNext makes the next n calls of action reply with HTTP 500.
func (b *MockBackend) FailNext(action string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failActions[action] = n
}

// Hits returns how many requests reached the backend.
func (b *MockBackend) Hits() int {
	return int(b.hits.Load())
}

// Actions returns the action of every request received, in order.
func (b *MockBackend) Actions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	for i, c := range b.calls {
		out[i] = c.Action
	}
	return out
}

// LastQuery returns the query parameters of the most recent call to action.
func (b *MockBackend) LastQuery(action string) map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.calls) - 1; i >= 0; i-- {
		if b.calls[i].Action == action {
			return b.calls[i].Query
		}
	}
	return nil
}

// LastForm returns the form body of the most recent call to action.
func (b *MockBackend) LastForm(action string) map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.calls) - 1; i >= 0; i-- {
		if b.calls[i].Action == action {
			return b.calls[i].Form
		}
	}
	return nil
}

func (b *MockBackend) serve(w http.ResponseWriter, r *http.Request) {
	b.hits.Add(1)
	_ = r.ParseForm()

	call := recordedCall{Method: r.Method, Action: r.URL.Query().Get("action"), Query: map[string]string{}, Form: map[string]string{}}
	for k := range r.URL.Query() {
		call.Query[k] = r.URL.Query().Get(k)
	}
	for k := range r.PostForm {
		call.Form[k] = r.PostForm.Get(k)
	}

	b.mu.Lock()
	b.calls = append(b.calls, call)
	if n := b.failActions[call.Action]; n > 0 {
		b.failActions[call.Action] = n - 1
		b.mu.Unlock()
		http.Error(w, "backend exploded", http.StatusInternalServerError)
		return
	}
	questions := b.questions
	review := b.review
	resetFails := b.resetFails
	b.mu.Unlock()

	switch call.Action {
	case "ping":
		writeJSON(w, map[string]any{"ok": true, "ts": time.Now().UTC().Format(time.RFC3339)})
	case "getQuestions":
		data := filter(questions, call.Query)
		writeJSON(w, map[string]any{"ok": true, "data": plain(data), "count": len(data)})
	case "getEcsQueue":
		writeJSON(w, map[string]any{"ok": true, "data": plain(review), "meta": map[string]any{"total_active": len(review)}})
	case "submitAnswer":
		chosen, _ := strconv.Atoi(call.Query["chosen_index"])
		for _, q := range append(append([]BankQuestion{}, questions...), review...) {
			if q.ID == call.Query["q_id"] {
				correct := chosen == q.Answer
				writeJSON(w, map[string]any{
					"ok":            true,
					"is_correct":    correct,
					"recorded":      true,
					"need_remedial": !correct,
					"explanation":   q.Explanation,
				})
				return
			}
		}
		writeJSON(w, map[string]any{"ok": false, "error": "unknown question", "error_code": "Q_NOT_FOUND"})
	case "resetUser":
		if resetFails {
			writeJSON(w, map[string]any{"ok": false, "error": "unknown action"})
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	default:
		writeJSON(w, map[string]any{"ok": false, "error": fmt.Sprintf("unknown action %q", call.Action)})
	}
}

func filter(qs []BankQuestion, q map[string]string) []BankQuestion {
	var out []BankQuestion
	for _, bq := range qs {
		if g := q["grade"]; g != "" && string(bq.Grade) != g {
			continue
		}
		if u := q["unit"]; u != "" && bq.Unit != u {
			continue
		}
		if d := q["difficulty"]; d != "" && bq.Difficulty != d {
			continue
		}
		out = append(out, bq)
	}
	return out
}

func plain(qs []BankQuestion) []model.Question {
	out := make([]model.Question, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Question)
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// SampleBank returns three questions whose correct answer is option 1.
func SampleBank() []BankQuestion {
	mk := func(id, stem string) BankQuestion {
		return BankQuestion{
			Question: model.Question{
				ID:          id,
				Stem:        stem,
				Grade:       "5",
				Unit:        "Light",
				Difficulty:  "easy",
				Options:     model.Options{"A", "B", "C"},
				Explanation: "because " + id,
			},
			Answer: 1,
		}
	}
	return []BankQuestion{mk("Q1", "first"), mk("Q2", "second"), mk("Q3", "third")}
}

// SOCKS5Server is a local SOCKS5 proxy that counts accepted connections.
type SOCKS5Server struct {
	listener *countingListener
}

// NewSOCKS5Server starts a proxy on a random port; it is closed on test cleanup.
func NewSOCKS5Server(t *testing.T) *SOCKS5Server {
	t.Helper()
	srv, err := socks5.New(&socks5.Config{})
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cl := &countingListener{Listener: l}
	go func() { _ = srv.Serve(cl) }()
	t.Cleanup(func() { _ = cl.Close() })
	return &SOCKS5Server{listener: cl}
}

// URL returns the socks5:// URL of the proxy.
func (s *SOCKS5Server) URL() string {
	return "socks5://" + s.listener.Addr().String()
}

// Connections returns how many client connections the proxy accepted.
func (s *SOCKS5Server) Connections() int {
	return int(s.listener.accepted.Load())
}

type countingListener struct {
	net.Listener
	accepted atomic.Int64
}

func (l *countingListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err == nil {
		l.accepted.Add(1)
	}
	return c, err
}
