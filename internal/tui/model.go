// Package tui is the interactive terminal front end of the session engine.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/studygarden/memquiz/core/model"
	"github.com/studygarden/memquiz/core/session"
)

// Emitter raises intents. *session.Bus implements it.
type Emitter interface {
	Emit(ctx context.Context, ev session.Event) error
}

// intentDoneMsg reports that an emitted intent has been handled.
type intentDoneMsg struct {
	intent session.Intent
	err    error
}

// keys maps single-key hotkeys to intents.
var keys = map[string]session.Intent{
	"enter": session.IntentSubmit,
	"n":     session.IntentAdvance,
	"l":     session.IntentLoad,
	"a":     session.IntentLoadAll,
	"r":     session.IntentLoadReview,
	"f":     session.IntentFinish,
	"R":     session.IntentRestart,
	"p":     session.IntentPing,
	"c":     session.IntentClearCache,
	"e":     session.IntentResetEndpoint,
}

const helpLine = "1-9 choose · enter submit · n next · ↑/↓ jump · l load · a all · r review · f finish · R restart · p ping · c clear · e endpoint · d debug · q quit"

// Model is the root bubbletea model. All state comes from the engine via
// Presenter messages; key presses only update the Selection or emit intents.
type Model struct {
	ctx     context.Context
	bus     Emitter
	sel     *Selection
	onStart func()

	endpoint string
	status   statusMsg
	progress session.Progress
	label    string
	mode     modeMsg
	question *session.QuestionView
	empty    string
	list     []model.Question
	current  int
	result   *session.Result
	trace    *session.Trace
	busy     map[session.Intent]bool

	showDebug bool
	width     int
}

// NewModel creates a Model. onStart, if set, runs once when the program starts.
func NewModel(ctx context.Context, bus Emitter, sel *Selection, onStart func()) Model {
	return Model{
		ctx:     ctx,
		bus:     bus,
		sel:     sel,
		onStart: onStart,
		current: -1,
		busy:    make(map[session.Intent]bool),
		status:  statusMsg{text: "ready"},
	}
}

func (m Model) Init() tea.Cmd {
	if m.onStart == nil {
		return nil
	}
	start := m.onStart
	return func() tea.Msg {
		start()
		return nil
	}
}

func (m Model) emit(ev session.Event) tea.Cmd {
	ctx, bus := m.ctx, m.bus
	return func() tea.Msg {
		return intentDoneMsg{intent: ev.Intent, err: bus.Emit(ctx, ev)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case endpointMsg:
		m.endpoint = string(msg)
	case statusMsg:
		m.status = msg
	case progressMsg:
		m.progress = session.Progress(msg)
	case labelMsg:
		m.label = string(msg)
	case modeMsg:
		m.mode = msg
	case emptyMsg:
		m.question = nil
		m.empty = string(msg)
		m.sel.Choose(-1)
	case questionMsg:
		q := session.QuestionView(msg)
		if m.question == nil || m.question.Question.ID != q.Question.ID {
			m.result = nil
			m.sel.Choose(-1)
		}
		m.question = &q
		m.empty = ""
	case listMsg:
		m.list, m.current = msg.questions, msg.current
	case resultMsg:
		r := session.Result(msg)
		m.result = &r
	case traceMsg:
		t := session.Trace(msg)
		m.trace = &t

	case intentDoneMsg:
		delete(m.busy, msg.intent)
		// Engine failures are already on the status line; only surface
		// errors the engine could not report itself.
		if msg.err != nil && msg.intent == session.IntentSelect {
			m.status = statusMsg{text: msg.err.Error(), severity: session.SeverityWarn}
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	switch k {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
		return m, nil
	case "up", "k":
		return m.jump(-1)
	case "down", "j":
		return m.jump(1)
	}

	if len(k) == 1 && k[0] >= '1' && k[0] <= '9' {
		i := int(k[0] - '1')
		if m.question != nil && i < len(m.question.Question.Options) {
			m.sel.Choose(i)
		}
		return m, nil
	}

	intent, ok := keys[k]
	if !ok || m.busy[intent] {
		return m, nil
	}
	m.busy[intent] = true
	return m, m.emit(session.Event{Intent: intent})
}

func (m Model) jump(delta int) (tea.Model, tea.Cmd) {
	next := m.current + delta
	if len(m.list) == 0 || next < 0 || next >= len(m.list) {
		return m, nil
	}
	return m, m.emit(session.Event{Intent: session.IntentSelect, QuestionID: m.list[next].ID})
}

func (m Model) View() string {
	var b strings.Builder

	header := styleTitle.Render("memquiz") + "  " + styleMuted.Render(m.endpoint)
	b.WriteString(header + "\n")

	mode := string(m.mode.mode)
	if mode == "" {
		mode = string(session.ModeStandard)
	}
	if m.mode.meta != nil && m.mode.meta.TotalActive != nil {
		mode = fmt.Sprintf("%s · %d remaining", mode, *m.mode.meta.TotalActive)
	}
	p := m.progress
	b.WriteString(styleMuted.Render(fmt.Sprintf("%s · %s · %d/%d · done %d · correct %d · %d%% · accuracy %d%%",
		m.label, mode, p.Index, p.Total, p.Done, p.Correct, p.Percent, p.Accuracy)) + "\n\n")

	b.WriteString(stylePane.Render(m.questionView()) + "\n")

	if r := m.resultView(); r != "" {
		b.WriteString(r + "\n")
	}
	if m.showDebug && m.trace != nil {
		b.WriteString(stylePane.Render(traceView(*m.trace)) + "\n")
	}

	b.WriteString("\n" + severityStyle(m.status.severity).Render(m.status.text) + "\n")
	b.WriteString(styleMuted.Render(helpLine))

	if m.width > 0 {
		return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
	}
	return b.String()
}

func (m Model) questionView() string {
	if m.question == nil {
		hint := m.empty
		if hint == "" {
			hint = "press l to load questions"
		}
		return styleMuted.Render(hint)
	}

	q := m.question.Question
	var b strings.Builder
	b.WriteString(styleTitle.Render(fmt.Sprintf("Q%d/%d  %s", m.question.Index+1, m.question.Total, q.ID)))
	var tags []string
	for _, t := range []string{string(q.Grade), q.Unit, q.Difficulty} {
		if t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) > 0 {
		b.WriteString("  " + styleMuted.Render(strings.Join(tags, " · ")))
	}
	b.WriteString("\n\n" + styleText.Render(q.Stem) + "\n\n")

	chosen, ok := m.sel.Chosen()
	for i, opt := range q.Options {
		line := fmt.Sprintf("  %d. %s", i+1, opt)
		if ok && i == chosen {
			line = styleHot.Render(fmt.Sprintf("> %d. %s", i+1, opt))
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) resultView() string {
	r := m.result
	if r == nil {
		return ""
	}
	if !r.OK {
		return styleWrong.Render(r.Message)
	}

	verdict := styleWrong.Render("✗ incorrect")
	if r.Correct {
		verdict = styleCorrect.Render("✓ correct")
	}
	parts := []string{verdict}
	if r.Explanation != "" {
		parts = append(parts, styleText.Render(r.Explanation))
	}
	meta := fmt.Sprintf("recorded %t · remedial %t · ecs %s", r.Recorded, r.NeedRemedial, r.ECSStatus)
	if r.ECSStreak != nil {
		meta += fmt.Sprintf(" (streak %d)", *r.ECSStreak)
	}
	parts = append(parts, styleMuted.Render(meta))
	return strings.Join(parts, "\n")
}

func traceView(t session.Trace) string {
	lines := []string{styleTitle.Render("debug: " + t.Action)}
	if t.URL != "" {
		lines = append(lines, styleMuted.Render(t.URL))
	}
	if t.Error != "" {
		lines = append(lines, styleWrong.Render(t.Error))
	}
	if t.Response != nil {
		lines = append(lines, styleText.Render(fmt.Sprintf("%+v", t.Response)))
	}
	return strings.Join(lines, "\n")
}
