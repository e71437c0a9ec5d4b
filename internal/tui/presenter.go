package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/studygarden/memquiz/core/model"
	"github.com/studygarden/memquiz/core/session"
)

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Selection is the input the engine reads back from the UI: the load filters
// and the highlighted option. It is shared by the Model and the Presenter.
type Selection struct {
	mu      sync.Mutex
	filters model.Filters
	chosen  int
}

// NewSelection returns a selection with no option chosen.
func NewSelection(f model.Filters) *Selection {
	return &Selection{filters: f, chosen: -1}
}

func (s *Selection) Filters() model.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

func (s *Selection) SetFilters(f model.Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f
}

// Choose highlights option i; a negative i clears the choice.
func (s *Selection) Choose(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chosen = i
}

func (s *Selection) Chosen() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chosen, s.chosen >= 0
}

type (
	endpointMsg string
	progressMsg session.Progress
	labelMsg    string
	questionMsg session.QuestionView
	emptyMsg    string
	resultMsg   session.Result
	traceMsg    session.Trace
)

type statusMsg struct {
	text     string
	severity session.Severity
}

type modeMsg struct {
	mode session.Mode
	meta *model.ReviewMeta
}

type listMsg struct {
	questions []model.Question
	current   int
}

// Presenter forwards engine updates to a bubbletea program as messages.
type Presenter struct {
	out Sender
	sel *Selection
}

var _ session.Presenter = (*Presenter)(nil)

// NewPresenter creates a Presenter that sends to out and reads input from sel.
func NewPresenter(out Sender, sel *Selection) *Presenter {
	return &Presenter{out: out, sel: sel}
}

func (p *Presenter) Filters() model.Filters    { return p.sel.Filters() }
func (p *Presenter) ChosenAnswer() (int, bool) { return p.sel.Chosen() }

func (p *Presenter) SetEndpointLabel(e string)             { p.out.Send(endpointMsg(e)) }
func (p *Presenter) SetSessionLabel(l string)              { p.out.Send(labelMsg(l)) }
func (p *Presenter) RenderEmpty(hint string)               { p.out.Send(emptyMsg(hint)) }
func (p *Presenter) SetProgress(pr session.Progress)       { p.out.Send(progressMsg(pr)) }
func (p *Presenter) ShowResult(r session.Result)           { p.out.Send(resultMsg(r)) }
func (p *Presenter) RenderDebug(t session.Trace)           { p.out.Send(traceMsg(t)) }
func (p *Presenter) RenderQuestion(q session.QuestionView) { p.out.Send(questionMsg(q)) }

func (p *Presenter) SetStatus(text string, sev session.Severity) {
	p.out.Send(statusMsg{text: text, severity: sev})
}

func (p *Presenter) SetMode(m session.Mode, meta *model.ReviewMeta) {
	p.out.Send(modeMsg{mode: m, meta: meta})
}

func (p *Presenter) RenderList(qs []model.Question, cur int) {
	p.out.Send(listMsg{questions: append([]model.Question(nil), qs...), current: cur})
}
