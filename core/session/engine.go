// Package session drives a quiz session: loading a queue of questions,
// submitting answers, advancing and finishing, and remembering the last
// finished session between runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studygarden/memquiz/core/client"
	"github.com/studygarden/memquiz/core/model"
	"github.com/studygarden/memquiz/core/transport"
	"github.com/studygarden/memquiz/pkg/kvstore"
	"github.com/studygarden/memquiz/pkg/logging"
	"github.com/studygarden/memquiz/pkg/metrics"
)

const (
	DefaultQuestionLimit    = 100
	DefaultReviewLimit      = 30
	DefaultAutoAdvanceDelay = 350 * time.Millisecond
)

var (
	// ErrNoAnswer is returned by Submit when no option is chosen. No request is sent.
	ErrNoAnswer = errors.New("no answer selected")
	// ErrNoQuestion is returned when there is no current (or matching) question.
	ErrNoQuestion = errors.New("no question")
	// ErrAlreadyAnswered is returned when the current question was already
	// answered in this session. No request is sent.
	ErrAlreadyAnswered = errors.New("question already answered")
)

// API is the subset of the request orchestrator the engine uses.
type API interface {
	Endpoint() string
	ResetEndpoint(ctx context.Context) error
	Ping(ctx context.Context) (*model.Pong, *transport.Response, error)
	Questions(ctx context.Context, f model.Filters, limit int) (*model.QuestionSet, *transport.Response, error)
	ReviewQueue(ctx context.Context, userID string, limit int) (*model.ReviewQueue, *transport.Response, error)
	SubmitAnswer(ctx context.Context, userID, questionID string, chosen int) (*model.AnswerResult, *transport.Response, error)
	ResetUser(ctx context.Context, userID string) (*transport.Response, error)
}

var _ API = (*client.Client)(nil)

// Config holds the engine's tunables. Zero values take the defaults.
type Config struct {
	UserID           string
	QuestionLimit    int
	ReviewLimit      int
	AutoAdvanceDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.UserID == "" {
		c.UserID = "u001"
	}
	if c.QuestionLimit <= 0 {
		c.QuestionLimit = DefaultQuestionLimit
	}
	if c.ReviewLimit <= 0 {
		c.ReviewLimit = DefaultReviewLimit
	}
	if c.AutoAdvanceDelay <= 0 {
		c.AutoAdvanceDelay = DefaultAutoAdvanceDelay
	}
	return c
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records answers and finished sessions on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides time.Now for summaries and snapshots.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSessionIDs overrides the session id generator.
func WithSessionIDs(next func() string) Option {
	return func(e *Engine) { e.newID = next }
}

// Engine is the session state machine. Operations may be called from any
// goroutine. The lock guards state only; it is never held across a request
// or a presenter call, so two overlapping loads resolve last-writer-wins.
type Engine struct {
	api       API
	presenter Presenter
	slot      *kvstore.Slot
	cfg       Config
	logger    logging.Logger
	metrics   *metrics.Collector
	now       func() time.Time
	newID     func() string

	mu    sync.Mutex
	state State
	// gen invalidates a pending auto-advance; timer is that pending advance.
	gen    uint64
	timer  *time.Timer
	closed bool
}

// New creates an Engine and restores the persisted snapshot from slot.
// slot may be nil, in which case nothing is persisted.
func New(ctx context.Context, api API, presenter Presenter, slot *kvstore.Slot, cfg Config, opts ...Option) *Engine {
	if presenter == nil {
		presenter = NopPresenter{}
	}
	cfg = cfg.withDefaults()
	e := &Engine{
		api:       api,
		presenter: presenter,
		slot:      slot,
		cfg:       cfg,
		logger:    logging.GetLogger(),
		now:       time.Now,
		newID:     uuid.NewString,
		state:     newState(cfg.UserID),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "session")
	e.restore(ctx)
	return e
}

// State returns a copy of the current session state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Bind subscribes the engine to every intent on bus.
func (e *Engine) Bind(bus *Bus) {
	bus.On(IntentPing, func(ctx context.Context, _ Event) error { return e.Ping(ctx) })
	bus.On(IntentLoad, func(ctx context.Context, _ Event) error { return e.Load(ctx, false) })
	bus.On(IntentLoadAll, func(ctx context.Context, _ Event) error { return e.Load(ctx, true) })
	bus.On(IntentLoadReview, func(ctx context.Context, _ Event) error { return e.LoadReview(ctx) })
	bus.On(IntentSubmit, func(ctx context.Context, _ Event) error { return e.Submit(ctx) })
	bus.On(IntentAdvance, func(ctx context.Context, _ Event) error { return e.Advance(ctx) })
	bus.On(IntentFinish, func(ctx context.Context, _ Event) error {
		_, err := e.Finish(ctx)
		return err
	})
	bus.On(IntentRestart, func(ctx context.Context, _ Event) error { return e.Restart(ctx) })
	bus.On(IntentClearCache, func(ctx context.Context, _ Event) error { return e.ClearLocal(ctx) })
	bus.On(IntentResetEndpoint, func(ctx context.Context, _ Event) error { return e.ResetEndpoint(ctx) })
	bus.On(IntentSelect, func(ctx context.Context, ev Event) error { return e.Select(ctx, ev.QuestionID) })
}

// Render pushes the whole current state to the presenter.
func (e *Engine) Render() {
	e.presenter.SetEndpointLabel(e.api.Endpoint())
	e.render()
}

func (e *Engine) render() {
	s := e.State()
	e.presenter.SetProgress(s.Progress())
	e.presenter.SetMode(s.Mode, s.ReviewMeta)
	e.presenter.SetSessionLabel(s.Label())

	if len(s.Queue) == 0 {
		e.presenter.RenderEmpty(s.EmptyHint())
		e.presenter.RenderList(nil, -1)
		return
	}
	e.presenter.RenderList(s.Queue, s.Index)
	e.renderCurrent(s)
}

func (e *Engine) renderCurrent(s State) {
	q, ok := s.Current()
	if !ok {
		return
	}
	e.presenter.RenderQuestion(QuestionView{Question: q, Index: s.Index, Total: len(s.Queue), Mode: s.Mode})
}

func (e *Engine) trace(t Trace) {
	t.At = e.now()
	if t.Error != "" {
		e.logger.Debug("operation failed", "action", t.Action, "url", t.URL, "request", t.Request, "error", t.Error)
	} else {
		e.logger.Debug("operation", "action", t.Action, "url", t.URL, "request", t.Request, "response", t.Response)
	}
	e.presenter.RenderDebug(t)
}

func responseURL(resp *transport.Response) string {
	if resp == nil {
		return ""
	}
	return resp.URL
}

// cancelAutoAdvanceLocked drops any pending auto-advance. e.mu must be held.
func (e *Engine) cancelAutoAdvanceLocked() {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) cancelAutoAdvance() {
	e.mu.Lock()
	e.cancelAutoAdvanceLocked()
	e.mu.Unlock()
}

// scheduleAdvanceLocked arms an auto-advance. e.mu must be held.
func (e *Engine) scheduleAdvanceLocked() {
	e.cancelAutoAdvanceLocked()
	if e.closed {
		return
	}
	gen := e.gen
	e.timer = time.AfterFunc(e.cfg.AutoAdvanceDelay, func() {
		if err := e.advance(context.Background(), gen, true); err != nil {
			e.logger.Warn("auto-advance failed", "error", err)
		}
	})
}

// Close cancels a pending auto-advance and stops arming new ones, so the
// presenter hears nothing more from timers. Other operations keep working.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.cancelAutoAdvanceLocked()
}

// Ping checks backend reachability.
func (e *Engine) Ping(ctx context.Context) error {
	e.presenter.SetStatus("connecting...", SeverityPending)
	pong, resp, err := e.api.Ping(ctx)
	if err != nil {
		msg := FormatError(err)
		e.presenter.SetStatus(fmt.Sprintf("unreachable (%s)", msg), SeverityError)
		e.trace(Trace{Action: client.ActionPing, Error: msg})
		return err
	}
	ts := pong.TSTaipei
	if ts == "" {
		ts = pong.TS
	}
	e.presenter.SetEndpointLabel(e.api.Endpoint())
	e.presenter.SetStatus(fmt.Sprintf("API OK: pong (%s)", ts), SeverityOK)
	e.trace(Trace{Action: client.ActionPing, URL: responseURL(resp), Response: pong})
	return nil
}

// ResetEndpoint forgets the remembered endpoint and pings again.
func (e *Engine) ResetEndpoint(ctx context.Context) error {
	if err := e.api.ResetEndpoint(ctx); err != nil {
		e.logger.Warn("failed to clear remembered endpoint", "error", err)
	}
	e.presenter.SetEndpointLabel(e.api.Endpoint())
	return e.Ping(ctx)
}

func (e *Engine) filters() model.Filters {
	e.mu.Lock()
	userID := e.state.UserID
	e.mu.Unlock()
	if userID == "" {
		userID = e.cfg.UserID
	}
	return e.presenter.Filters().Normalize(userID)
}

// Load replaces the queue with questions matching the presenter's filters,
// or with any questions when ignoreFilters is set. On failure the current
// session is left as it was.
func (e *Engine) Load(ctx context.Context, ignoreFilters bool) error {
	f := e.filters()
	query := f
	if ignoreFilters {
		query = model.Filters{UserID: f.UserID}
	}

	e.cancelAutoAdvance()
	e.presenter.SetStatus("loading questions...", SeverityPending)
	set, resp, err := e.api.Questions(ctx, query, e.cfg.QuestionLimit)
	if err != nil {
		msg := FormatError(err)
		e.presenter.SetStatus(fmt.Sprintf("load failed (%s)", msg), SeverityError)
		e.trace(Trace{Action: client.ActionGetQuestions, Request: query, Error: msg})
		return err
	}

	count := len(set.Data)
	if set.Count != nil {
		count = *set.Count
	}
	e.mu.Lock()
	e.cancelAutoAdvanceLocked()
	e.state.replace(set.Data, ModeStandard, nil, f, e.newID())
	e.mu.Unlock()

	e.presenter.SetEndpointLabel(e.api.Endpoint())
	e.presenter.SetStatus(fmt.Sprintf("loaded: backend returned %d, showing %d", count, len(set.Data)), SeverityOK)
	e.trace(Trace{
		Action:   client.ActionGetQuestions,
		URL:      responseURL(resp),
		Request:  query,
		Response: map[string]any{"meta": set.Meta, "parsed": len(set.Data)},
	})
	e.render()
	_ = e.persist(ctx)
	return nil
}

// LoadReview replaces the queue with the user's review backlog.
func (e *Engine) LoadReview(ctx context.Context) error {
	f := e.filters()

	e.cancelAutoAdvance()
	e.presenter.SetStatus("loading review queue...", SeverityPending)
	queue, resp, err := e.api.ReviewQueue(ctx, f.UserID, e.cfg.ReviewLimit)
	if err != nil {
		msg := FormatError(err)
		e.presenter.SetStatus(fmt.Sprintf("review load failed (%s)", msg), SeverityError)
		e.trace(Trace{Action: client.ActionGetReview, Request: f.UserID, Error: msg})
		return err
	}

	remaining := len(queue.Data)
	if queue.Meta != nil && queue.Meta.TotalActive != nil {
		remaining = *queue.Meta.TotalActive
	}
	e.mu.Lock()
	e.cancelAutoAdvanceLocked()
	e.state.replace(queue.Data, ModeReview, queue.Meta, f, e.newID())
	e.mu.Unlock()

	e.presenter.SetEndpointLabel(e.api.Endpoint())
	e.presenter.SetStatus(fmt.Sprintf("review loaded: %d remaining, showing %d", remaining, len(queue.Data)), SeverityOK)
	e.trace(Trace{
		Action:   client.ActionGetReview,
		URL:      responseURL(resp),
		Request:  f.UserID,
		Response: map[string]any{"meta": queue.Meta, "parsed": len(queue.Data)},
	})
	e.render()
	_ = e.persist(ctx)
	return nil
}

// Submit answers the current question with the presenter's chosen option.
func (e *Engine) Submit(ctx context.Context) error {
	chosen, ok := e.presenter.ChosenAnswer()
	if !ok {
		chosen = -1
	}
	return e.SubmitChoice(ctx, chosen)
}

// SubmitChoice answers the current question with option index chosen.
// A negative index is a local validation failure and sends nothing.
func (e *Engine) SubmitChoice(ctx context.Context, chosen int) error {
	e.mu.Lock()
	q, ok := e.state.Current()
	index := e.state.Index
	answered := e.state.Answered[index]
	userID := e.state.UserID
	sessionID := e.state.SessionID
	e.mu.Unlock()
	if !ok {
		return ErrNoQuestion
	}
	if answered {
		e.presenter.SetStatus(fmt.Sprintf("%s already answered; move to the next question", q.ID), SeverityWarn)
		return ErrAlreadyAnswered
	}
	if chosen < 0 {
		e.presenter.ShowResult(Result{Message: "choose an answer first"})
		return ErrNoAnswer
	}

	answer, resp, err := e.api.SubmitAnswer(ctx, userID, q.ID, chosen)
	if err != nil {
		msg := FormatError(err)
		e.presenter.ShowResult(Result{Message: msg, QuestionID: q.ID, Chosen: chosen})
		e.presenter.SetStatus(fmt.Sprintf("submit failed (%s)", msg), SeverityError)
		e.trace(Trace{Action: client.ActionSubmitAnswer, Request: map[string]any{"q_id": q.ID, "chosen_index": chosen}, Error: msg})
		return err
	}

	e.mu.Lock()
	cur, _ := e.state.Current()
	if e.state.SessionID != sessionID || e.state.Index != index || cur.ID != q.ID {
		e.mu.Unlock()
		e.logger.Debug("dropping stale answer", "question", q.ID, "session", sessionID)
		return nil
	}
	if e.state.Answered[index] {
		// A concurrent submit for the same question got there first.
		e.mu.Unlock()
		e.logger.Debug("dropping duplicate answer", "question", q.ID, "session", sessionID)
		return ErrAlreadyAnswered
	}
	if e.state.Answered == nil {
		e.state.Answered = make(map[int]bool)
	}
	e.state.Answered[index] = true
	e.state.Done++
	if answer.IsCorrect {
		e.state.Correct++
		e.scheduleAdvanceLocked()
	}
	progress := e.state.Progress()
	e.mu.Unlock()

	e.metrics.RecordAnswer(answer.IsCorrect)

	result := Result{
		OK:           true,
		QuestionID:   q.ID,
		Chosen:       chosen,
		Correct:      answer.IsCorrect,
		Explanation:  answer.Explanation,
		Recorded:     answer.Recorded,
		NeedRemedial: answer.NeedRemedial,
		ECSStatus:    answer.ECSStatus,
		ECSStreak:    answer.ECSStreak,
	}
	if result.Explanation == "" {
		result.Explanation = q.Explanation
	}
	if result.ECSStatus == "" {
		result.ECSStatus = "none"
	}
	e.presenter.ShowResult(result)
	e.trace(Trace{
		Action:   client.ActionSubmitAnswer,
		URL:      responseURL(resp),
		Request:  map[string]any{"user_id": userID, "q_id": q.ID, "chosen_index": chosen},
		Response: answer,
	})
	e.presenter.SetProgress(progress)
	return nil
}

// Advance moves to the next question, finishing the session after the last one.
func (e *Engine) Advance(ctx context.Context) error {
	return e.advance(ctx, 0, false)
}

func (e *Engine) advance(ctx context.Context, gen uint64, auto bool) error {
	e.mu.Lock()
	if auto && gen != e.gen {
		e.mu.Unlock()
		return nil
	}
	e.cancelAutoAdvanceLocked()
	total := len(e.state.Queue)
	if total == 0 {
		e.mu.Unlock()
		return nil
	}
	if e.state.Index >= total-1 {
		summary := e.finishLocked(true)
		e.mu.Unlock()
		return e.afterFinish(ctx, summary)
	}
	e.state.Index++
	s := e.state.clone()
	e.mu.Unlock()

	e.renderCurrent(s)
	e.presenter.RenderList(s.Queue, s.Index)
	return nil
}

// Finish ends the session and records its summary. Finishing an already
// finished session is a no-op that returns the stored summary.
func (e *Engine) Finish(ctx context.Context) (model.Summary, error) {
	e.mu.Lock()
	e.cancelAutoAdvanceLocked()
	if e.state.Finished && len(e.state.Queue) == 0 && e.state.LastSummary != nil {
		s := *e.state.LastSummary
		e.mu.Unlock()
		return s, nil
	}
	summary := e.finishLocked(false)
	e.mu.Unlock()
	return summary, e.afterFinish(ctx, summary)
}

// finishLocked collapses the session into a summary. e.mu must be held.
func (e *Engine) finishLocked(auto bool) model.Summary {
	s := model.Summary{
		UserID:       e.state.UserID,
		SessionID:    e.state.SessionID,
		Mode:         string(e.state.Mode),
		Total:        len(e.state.Queue),
		Done:         e.state.Done,
		Correct:      e.state.Correct,
		Accuracy:     model.Accuracy(e.state.Correct, e.state.Done),
		FinishedAt:   e.now().UTC(),
		AutoFinished: auto,
	}
	e.state.Finished = true
	e.state.Loaded = false
	e.state.LastSummary = &s
	e.state.Queue = nil
	e.state.Answered = nil
	e.state.Index = 0
	return s
}

func (e *Engine) afterFinish(ctx context.Context, s model.Summary) error {
	e.metrics.RecordSessionFinished(s.AutoFinished)
	err := e.persist(ctx)
	e.presenter.SetStatus(fmt.Sprintf("session finished: %d answered, %d correct (%d%%)", s.Done, s.Correct, s.Accuracy), SeverityOK)
	e.trace(Trace{Action: "finish", Response: s})
	e.render()
	return err
}

// Restart asks the backend to forget the user's progress, then clears all
// local state. A backend that can't reset only downgrades the status to a
// warning.
func (e *Engine) Restart(ctx context.Context) error {
	e.mu.Lock()
	e.cancelAutoAdvanceLocked()
	fallbackUser := e.state.UserID
	e.mu.Unlock()

	userID := strings.TrimSpace(e.presenter.Filters().UserID)
	if userID == "" {
		userID = fallbackUser
	}
	if userID == "" {
		userID = e.cfg.UserID
	}

	e.presenter.SetStatus("restart: asking backend to reset progress...", SeverityPending)
	resp, err := e.api.ResetUser(ctx, userID)
	if err != nil {
		msg := FormatError(err)
		e.presenter.SetStatus("backend reset unavailable; cleared local cache only", SeverityWarn)
		e.trace(Trace{Action: client.ActionResetUser, Request: userID, Error: msg})
	} else {
		e.presenter.SetStatus("backend progress cleared; load questions to start over", SeverityOK)
		e.trace(Trace{Action: client.ActionResetUser, URL: responseURL(resp), Request: userID})
	}

	var clearErr error
	if e.slot != nil {
		if clearErr = e.slot.Clear(ctx); clearErr != nil {
			e.logger.Warn("failed to clear session snapshot", "error", clearErr)
		}
	}

	e.mu.Lock()
	e.cancelAutoAdvanceLocked()
	filters := e.state.Filters
	e.state = newState(userID)
	e.state.Filters = filters
	e.state.Filters.UserID = userID
	e.mu.Unlock()

	e.render()
	return clearErr
}

// ClearLocal removes the persisted snapshot. The in-memory session is kept.
func (e *Engine) ClearLocal(ctx context.Context) error {
	if e.slot != nil {
		if err := e.slot.Clear(ctx); err != nil {
			e.presenter.SetStatus(fmt.Sprintf("failed to clear local cache (%v)", err), SeverityError)
			return err
		}
	}
	e.presenter.SetStatus("local cache cleared", SeverityOK)
	e.trace(Trace{Action: "clearLocal"})
	return nil
}

// Select jumps to the queued question with id questionID.
func (e *Engine) Select(_ context.Context, questionID string) error {
	e.mu.Lock()
	idx := -1
	for i, q := range e.state.Queue {
		if q.ID == questionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoQuestion, questionID)
	}
	e.cancelAutoAdvanceLocked()
	e.state.Index = idx
	s := e.state.clone()
	e.mu.Unlock()

	e.renderCurrent(s)
	e.presenter.RenderList(s.Queue, s.Index)
	return nil
}
