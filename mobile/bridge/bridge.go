//go:generate mockgen -package=mocks -destination=../../mocks/mock_status_updater.go github.com/studygarden/memquiz/mobile/bridge StatusUpdater

// Package bridge provides a gomobile-compatible wrapper around the memquiz library.
//
// Only basic types cross the boundary: configuration is YAML text, intents
// are their names, and structured updates are delivered as JSON strings.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/studygarden/memquiz"
	"github.com/studygarden/memquiz/core/config"
	"github.com/studygarden/memquiz/core/model"
	"github.com/studygarden/memquiz/core/session"
	"github.com/studygarden/memquiz/pkg/logging"
)

// Status values passed to StatusUpdater.OnStatusUpdate.
const (
	StatusReady        = "READY"
	StatusDisconnected = "DISCONNECTED"
	StatusError        = "ERROR"
	StatusPending      = "PENDING"
	StatusOK           = "OK"
	StatusWarn         = "WARN"
	StatusInfo         = "INFO"
	StatusEndpoint     = "ENDPOINT"
	StatusProgress     = "PROGRESS"
	StatusSession      = "SESSION"
	StatusMode         = "MODE"
	StatusQuestion     = "QUESTION"
	StatusEmpty        = "EMPTY"
	StatusList         = "LIST"
	StatusResult       = "RESULT"
	StatusDebug        = "DEBUG"
)

// ErrNotStarted is returned when no engine is running.
var ErrNotStarted = errors.New("engine not started")

// StatusUpdater is an interface that native mobile code must implement
// to receive updates from the Go library.
type StatusUpdater interface {
	// OnStatusUpdate is called with one of the Status* values and a message,
	// which is JSON for PROGRESS, QUESTION, LIST, RESULT and DEBUG.
	OnStatusUpdate(status, message string)
}

// Bridge holds one running engine.
type Bridge struct {
	app       *memquiz.App
	engine    *session.Engine
	bus       *session.Bus
	presenter *updaterPresenter
}

var (
	mu      sync.Mutex
	current *Bridge
)

// SetGlobalBridgeForTesting replaces the running bridge.
func SetGlobalBridgeForTesting(b *Bridge) {
	mu.Lock()
	defer mu.Unlock()
	current = b
}

// StartEngine parses configYAML, builds the client and binds a new session
// engine to updater.
func StartEngine(configYAML string, updater StatusUpdater) {
	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		updater.OnStatusUpdate(StatusError, "Engine already started")
		return
	}
	if strings.TrimSpace(configYAML) == "" {
		updater.OnStatusUpdate(StatusError, "configuration is empty; please provide at least api.primary")
		return
	}

	cfg, err := config.Parse([]byte(configYAML))
	if err != nil {
		updater.OnStatusUpdate(StatusError, "Failed to load configuration: "+err.Error())
		return
	}

	ctx := context.Background()
	logger := logging.GetLogger().With("component", "bridge")
	app, err := memquiz.New(ctx, cfg, memquiz.WithLogger(logger))
	if err != nil {
		updater.OnStatusUpdate(StatusError, "Failed to create client: "+err.Error())
		return
	}

	p := &updaterPresenter{updater: updater, filters: model.Filters{UserID: cfg.Session.UserID}, chosen: -1}
	b := &Bridge{app: app, presenter: p, bus: session.NewBus()}
	b.engine = app.NewEngine(ctx, p)
	b.engine.Bind(b.bus)
	current = b

	updater.OnStatusUpdate(StatusReady, "Engine ready; endpoint "+app.Resolver.Resolve())
	b.engine.Render()
}

// StopEngine releases the running engine.
func StopEngine(updater StatusUpdater) {
	mu.Lock()
	defer mu.Unlock()

	if current == nil {
		updater.OnStatusUpdate(StatusError, "Engine not running")
		return
	}
	if current.engine != nil {
		current.engine.Close()
	}
	if current.app != nil {
		if err := current.app.Close(); err != nil {
			logging.GetLogger().Warn("failed to close store", "error", err)
		}
	}
	current = nil
	updater.OnStatusUpdate(StatusDisconnected, "Engine stopped.")
}

func running() (*Bridge, error) {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil, ErrNotStarted
	}
	return current, nil
}

// Dispatch raises intent (e.g. "load", "submit", "select") on the running
// engine and blocks until it is handled. arg is the question id for "select"
// and ignored otherwise. Failures are also reported through the updater.
func Dispatch(intent, arg string) error {
	b, err := running()
	if err != nil {
		return err
	}
	i, ok := session.ParseIntent(intent)
	if !ok {
		return fmt.Errorf("unknown intent %q", intent)
	}
	return b.bus.Emit(context.Background(), session.Event{Intent: i, QuestionID: arg})
}

// SetFilters sets the filters used by the next load.
func SetFilters(userID, grade, unit, difficulty string) error {
	b, err := running()
	if err != nil {
		return err
	}
	b.presenter.setFilters(model.Filters{UserID: userID, Grade: grade, Unit: unit, Difficulty: difficulty})
	return nil
}

// SetChosenAnswer selects an option for the next submit; a negative index clears it.
func SetChosenAnswer(index int) error {
	b, err := running()
	if err != nil {
		return err
	}
	b.presenter.setChosen(index)
	return nil
}

// updaterPresenter adapts StatusUpdater to session.Presenter.
type updaterPresenter struct {
	updater StatusUpdater

	mu      sync.Mutex
	filters model.Filters
	chosen  int
	shown   string
}

var _ session.Presenter = (*updaterPresenter)(nil)

func (p *updaterPresenter) setFilters(f model.Filters) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters = f
}

func (p *updaterPresenter) setChosen(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chosen = i
}

func (p *updaterPresenter) Filters() model.Filters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filters
}

func (p *updaterPresenter) ChosenAnswer() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chosen, p.chosen >= 0
}

func (p *updaterPresenter) send(status string, v any) {
	buf, err := json.Marshal(v)
	if err != nil {
		p.updater.OnStatusUpdate(StatusError, "encode "+strings.ToLower(status)+": "+err.Error())
		return
	}
	p.updater.OnStatusUpdate(status, string(buf))
}

func (p *updaterPresenter) SetEndpointLabel(e string) { p.updater.OnStatusUpdate(StatusEndpoint, e) }
func (p *updaterPresenter) SetSessionLabel(l string)  { p.updater.OnStatusUpdate(StatusSession, l) }

func (p *updaterPresenter) RenderEmpty(hint string) {
	p.mu.Lock()
	p.shown, p.chosen = "", -1
	p.mu.Unlock()
	p.updater.OnStatusUpdate(StatusEmpty, hint)
}

func (p *updaterPresenter) SetStatus(text string, sev session.Severity) {
	status := StatusInfo
	switch sev {
	case session.SeverityPending:
		status = StatusPending
	case session.SeverityOK:
		status = StatusOK
	case session.SeverityWarn:
		status = StatusWarn
	case session.SeverityError:
		status = StatusError
	}
	p.updater.OnStatusUpdate(status, text)
}

func (p *updaterPresenter) SetProgress(pr session.Progress) {
	p.send(StatusProgress, map[string]int{
		"index":    pr.Index,
		"total":    pr.Total,
		"done":     pr.Done,
		"correct":  pr.Correct,
		"percent":  pr.Percent,
		"accuracy": pr.Accuracy,
	})
}

func (p *updaterPresenter) SetMode(m session.Mode, meta *model.ReviewMeta) {
	msg := string(m)
	if meta != nil && meta.TotalActive != nil {
		msg = fmt.Sprintf("%s (%d remaining)", m, *meta.TotalActive)
	}
	p.updater.OnStatusUpdate(StatusMode, msg)
}

// RenderQuestion clears the chosen option when a different question is shown.
func (p *updaterPresenter) RenderQuestion(q session.QuestionView) {
	p.mu.Lock()
	if q.Question.ID != p.shown {
		p.shown = q.Question.ID
		p.chosen = -1
	}
	p.mu.Unlock()

	p.send(StatusQuestion, map[string]any{
		"question": q.Question,
		"index":    q.Index,
		"total":    q.Total,
		"mode":     q.Mode,
	})
}

func (p *updaterPresenter) RenderList(qs []model.Question, cur int) {
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	p.send(StatusList, map[string]any{"ids": ids, "current": cur})
}

func (p *updaterPresenter) ShowResult(r session.Result) {
	p.send(StatusResult, map[string]any{
		"ok":            r.OK,
		"message":       r.Message,
		"question_id":   r.QuestionID,
		"chosen_index":  r.Chosen,
		"is_correct":    r.Correct,
		"explanation":   r.Explanation,
		"recorded":      r.Recorded,
		"need_remedial": r.NeedRemedial,
		"ecs_status":    r.ECSStatus,
		"ecs_streak":    r.ECSStreak,
	})
}

func (p *updaterPresenter) RenderDebug(t session.Trace) {
	p.send(StatusDebug, map[string]any{
		"action": t.Action,
		"url":    t.URL,
		"error":  t.Error,
		"at":     t.At,
	})
}
